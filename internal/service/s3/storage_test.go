package s3

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivelens/internal/preview"
)

type fakeStorage struct {
	mu         sync.Mutex
	objects    map[string][]byte
	deletes    []string
	presignErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) UploadBytes(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) PresignGet(_ context.Context, key string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://bucket.example/" + key + "?X-Amz-Signature=sig", nil
}

func (f *fakeStorage) DeleteObject(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	delete(f.objects, key)
	return nil
}

func TestResourceStorePutAndRelease(t *testing.T) {
	storage := newFakeStorage()
	store := NewResourceStore(storage, "")

	res, err := store.Put(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	key := "previews/" + res.ID
	assert.Contains(t, storage.objects, key)
	assert.True(t, strings.HasPrefix(res.URL, "https://bucket.example/"+key))
	assert.Equal(t, int64(4), res.Size)

	require.NoError(t, res.Release())
	assert.ErrorIs(t, res.Release(), preview.ErrResourceReleased)
	assert.Equal(t, []string{key}, storage.deletes)
	assert.Empty(t, storage.objects)
}

func TestResourceStoreCleansUpWhenPresignFails(t *testing.T) {
	storage := newFakeStorage()
	storage.presignErr = errors.New("signer unavailable")
	store := NewResourceStore(storage, "tmp")

	_, err := store.Put(context.Background(), []byte("x"), "image/png")
	require.Error(t, err)
	assert.Len(t, storage.deletes, 1)
	assert.True(t, strings.HasPrefix(storage.deletes[0], "tmp/"))
	assert.Empty(t, storage.objects)
}
