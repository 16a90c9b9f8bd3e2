package repository

import (
	"context"
	"time"

	"drivelens/internal/domain"
)

// SessionRepository persists the navigation of browsing sessions.
type SessionRepository interface {
	Save(ctx context.Context, snap domain.SessionSnapshot) error
	// Get returns a domain NotFound error for unknown ids.
	Get(ctx context.Context, id string) (domain.SessionSnapshot, error)
	Delete(ctx context.Context, id string) error
	// DeleteIdle removes sessions not updated since before and returns their ids.
	DeleteIdle(ctx context.Context, before time.Time) ([]string, error)
	Close() error
}

func sessionNotFound(id string) error {
	return domain.NotFound("session " + id + " not found")
}
