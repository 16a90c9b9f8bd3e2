package repository

import (
	"context"
	"sync"
	"time"

	"drivelens/internal/domain"
)

type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionSnapshot
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]domain.SessionSnapshot)}
}

func (r *MemorySessionRepository) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if prev, ok := r.sessions[snap.ID]; ok {
		snap.CreatedAt = prev.CreatedAt
	} else if snap.CreatedAt.IsZero() {
		snap.CreatedAt = now
	}
	snap.UpdatedAt = now
	r.sessions[snap.ID] = cloneSnapshot(snap)
	return nil
}

func (r *MemorySessionRepository) Get(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.sessions[id]
	if !ok {
		return domain.SessionSnapshot{}, sessionNotFound(id)
	}
	return cloneSnapshot(snap), nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

func (r *MemorySessionRepository) DeleteIdle(ctx context.Context, before time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, snap := range r.sessions {
		if snap.UpdatedAt.Before(before) {
			ids = append(ids, id)
			delete(r.sessions, id)
		}
	}
	return ids, nil
}

func (r *MemorySessionRepository) Close() error {
	return nil
}

func cloneSnapshot(s domain.SessionSnapshot) domain.SessionSnapshot {
	s.Owned = cloneNavigation(s.Owned)
	s.Shared = cloneNavigation(s.Shared)
	return s
}

func cloneNavigation(n domain.NavigationState) domain.NavigationState {
	n.AncestorStack = append([]string(nil), n.AncestorStack...)
	if n.FolderNames != nil {
		names := make(map[string]string, len(n.FolderNames))
		for k, v := range n.FolderNames {
			names[k] = v
		}
		n.FolderNames = names
	}
	return n
}
