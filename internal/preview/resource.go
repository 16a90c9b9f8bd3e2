package preview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"drivelens/internal/metrics"
)

var ErrResourceReleased = errors.New("resource already released")

// ResourceStore hands out revocable references to preview bytes.
type ResourceStore interface {
	Put(ctx context.Context, data []byte, contentType string) (*Resource, error)
}

// Resource is a revocable reference to materialized preview bytes. The
// underlying storage is freed by the first Release; later calls are no-ops
// that return ErrResourceReleased.
type Resource struct {
	ID          string
	URL         string
	ContentType string
	Size        int64

	released atomic.Bool
	revoke   func() error
}

// NewResource wraps a backend allocation. revoke is called at most once.
func NewResource(id, url, contentType string, size int64, revoke func() error) *Resource {
	metrics.ResourceAllocated()
	return &Resource{
		ID:          id,
		URL:         url,
		ContentType: contentType,
		Size:        size,
		revoke:      revoke,
	}
}

func (r *Resource) Release() error {
	if !r.released.CompareAndSwap(false, true) {
		return ErrResourceReleased
	}
	metrics.ResourceReleased()
	if r.revoke == nil {
		return nil
	}
	return r.revoke()
}

func (r *Resource) Released() bool {
	return r.released.Load()
}

type memoryEntry struct {
	data        []byte
	contentType string
}

// MemoryStore keeps resource bytes in process memory. The HTTP API serves them
// at <baseURL>/v1/resources/{id} until released.
type MemoryStore struct {
	baseURL string

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Put(_ context.Context, data []byte, contentType string) (*Resource, error) {
	id := uuid.NewString()

	s.mu.Lock()
	s.entries[id] = memoryEntry{data: data, contentType: contentType}
	s.mu.Unlock()

	return NewResource(id, s.baseURL+"/v1/resources/"+id, contentType, int64(len(data)), func() error {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil
	}), nil
}

// Get returns the bytes of a live resource.
func (s *MemoryStore) Get(id string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e.data, e.contentType, ok
}

// Live returns the number of unreleased resources.
func (s *MemoryStore) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
