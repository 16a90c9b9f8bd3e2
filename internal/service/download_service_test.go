package service

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivelens/internal/domain"
)

func TestDownload_ExportTargets(t *testing.T) {
	tests := []struct {
		name     string
		file     domain.File
		wantName string
		wantCall string
		wantType string
	}{
		{"sheet", file("s1", "Budget", domain.MIMEGoogleSheet), "Budget.xlsx", "export:s1:" + domain.MIMEXLSX, domain.MIMEXLSX},
		{"doc", file("d1", "Notes", domain.MIMEGoogleDoc), "Notes.pdf", "export:d1:" + domain.MIMEPDF, domain.MIMEPDF},
		{"slides", file("p1", "Deck", domain.MIMEGoogleSlide), "Deck.pdf", "export:p1:" + domain.MIMEPDF, domain.MIMEPDF},
		{"raw", file("r1", "song.mp3", "audio/mpeg"), "song.mp3", "open:r1", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := newFakeStorage()
			storage.content[tt.file.ID] = "bytes"
			svc := NewDownloadService(storage)

			dl, err := svc.Open(context.Background(), tt.file, cred)
			require.NoError(t, err)
			defer dl.Body.Close()

			body, err := io.ReadAll(dl.Body)
			require.NoError(t, err)
			assert.Equal(t, "bytes", string(body))
			assert.Equal(t, tt.wantName, dl.FileName)
			assert.Equal(t, tt.wantType, dl.ContentType)
			assert.Equal(t, int64(5), dl.Size)
			assert.Equal(t, []string{tt.wantCall}, storage.recorded())
		})
	}
}

func TestDownload_Errors(t *testing.T) {
	storage := newFakeStorage()
	svc := NewDownloadService(storage)
	ctx := context.Background()

	_, err := svc.Open(ctx, file("x", "a.pdf", domain.MIMEPDF), "")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	_, err = svc.Open(ctx, domain.File{}, cred)
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = svc.Open(ctx, folder("f", "Work"), cred)
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	_, err = svc.Open(ctx, file("missing", "a.pdf", domain.MIMEPDF), cred)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)

	assert.Empty(t, storage.recorded())
}

func TestDownload_NameFallsBackToID(t *testing.T) {
	storage := newFakeStorage()
	storage.content["d1"] = "x"

	dl, err := NewDownloadService(storage).Open(context.Background(), domain.File{ID: "d1", MIMEType: domain.MIMEGoogleDoc}, cred)
	require.NoError(t, err)
	defer dl.Body.Close()
	assert.Equal(t, "d1.pdf", dl.FileName)
}
