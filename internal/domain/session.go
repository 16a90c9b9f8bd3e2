package domain

import "time"

// SessionSnapshot is the persisted navigation of a browsing session.
type SessionSnapshot struct {
	ID        string          `json:"id" db:"id"`
	View      View            `json:"view" db:"view"`
	Owned     NavigationState `json:"owned" db:"-"`
	Shared    NavigationState `json:"shared" db:"-"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
