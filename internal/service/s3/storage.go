package s3

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drivelens/internal/logging"
	"drivelens/internal/preview"
)

const defaultPrefix = "previews/"

// Storage is the subset of bucket operations preview resources need.
type Storage interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
	DeleteObject(key string) error
}

// ResourceStore keeps preview bytes in a bucket and hands out presigned URLs.
// Releasing a resource deletes its object.
type ResourceStore struct {
	storage Storage
	prefix  string
}

func NewResourceStore(storage Storage, prefix string) *ResourceStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ResourceStore{storage: storage, prefix: prefix}
}

func (s *ResourceStore) Put(ctx context.Context, data []byte, contentType string) (*preview.Resource, error) {
	id := uuid.NewString()
	key := path.Join(s.prefix, id)

	if err := s.storage.UploadBytes(ctx, key, data, contentType); err != nil {
		return nil, err
	}

	url, err := s.storage.PresignGet(ctx, key)
	if err != nil {
		if derr := s.storage.DeleteObject(key); derr != nil {
			logging.Warn("failed to delete unpublished preview object", zap.String("key", key), zap.Error(derr))
		}
		return nil, fmt.Errorf("failed to publish preview resource: %w", err)
	}

	return preview.NewResource(id, url, contentType, int64(len(data)), func() error {
		return s.storage.DeleteObject(key)
	}), nil
}
