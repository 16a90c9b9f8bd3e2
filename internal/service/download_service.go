package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"drivelens/internal/domain"
	"drivelens/internal/logging"
	"drivelens/internal/service/drive"
)

// Download is an open file stream. Callers must close Body.
type Download struct {
	Body        io.ReadCloser
	FileName    string
	ContentType string
	Size        int64
}

// exportTarget is the format a native document is converted to on download.
type exportTarget struct {
	mimeType  string
	extension string
}

var exportTargets = map[string]exportTarget{
	domain.MIMEGoogleSheet: {domain.MIMEXLSX, ".xlsx"},
	domain.MIMEGoogleDoc:   {domain.MIMEPDF, ".pdf"},
	domain.MIMEGoogleSlide: {domain.MIMEPDF, ".pdf"},
}

// DownloadService streams file content, exporting native formats.
type DownloadService struct {
	storage drive.Storage
}

func NewDownloadService(storage drive.Storage) *DownloadService {
	return &DownloadService{storage: storage}
}

// Open starts the download of file.
func (s *DownloadService) Open(ctx context.Context, file domain.File, credential string) (*Download, error) {
	if credential == "" {
		return nil, domain.AuthRequired()
	}
	if file.ID == "" {
		return nil, domain.Invalid("file id is required")
	}
	if file.IsFolder() {
		return nil, domain.Unsupported("folders cannot be downloaded")
	}

	name := file.Name
	if name == "" {
		name = file.ID
	}

	var content *drive.Content
	var err error
	if target, ok := exportTargets[file.MIMEType]; ok {
		content, err = s.storage.OpenExport(ctx, credential, file.ID, target.mimeType)
		name += target.extension
	} else {
		content, err = s.storage.OpenContent(ctx, credential, file.ID)
	}
	if err != nil {
		logging.WithContext(ctx).Warn("download failed", zap.String("file_id", file.ID), zap.Error(err))
		return nil, err
	}

	contentType := content.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Download{
		Body:        content.Body,
		FileName:    name,
		ContentType: contentType,
		Size:        content.Size,
	}, nil
}
