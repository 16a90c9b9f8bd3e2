package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"drivelens/internal/domain"
)

type sessionRow struct {
	ID        string    `db:"id"`
	View      string    `db:"view"`
	Owned     []byte    `db:"owned"`
	Shared    []byte    `db:"shared"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresSessionRepository stores sessions in the sessions table. Both
// navigation states are kept as jsonb.
type PostgresSessionRepository struct {
	db *sqlx.DB
}

func NewPostgresSessionRepository(db *sqlx.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	owned, err := json.Marshal(snap.Owned)
	if err != nil {
		return fmt.Errorf("failed to encode owned navigation: %w", err)
	}
	shared, err := json.Marshal(snap.Shared)
	if err != nil {
		return fmt.Errorf("failed to encode shared navigation: %w", err)
	}

	query := `
        INSERT INTO sessions (id, view, owned, shared)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE
        SET view = EXCLUDED.view,
            owned = EXCLUDED.owned,
            shared = EXCLUDED.shared,
            updated_at = CURRENT_TIMESTAMP`

	if _, err := r.db.ExecContext(ctx, query, snap.ID, string(snap.View), owned, shared); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepository) Get(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	var row sessionRow
	query := `SELECT id, view, owned, shared, created_at, updated_at FROM sessions WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SessionSnapshot{}, sessionNotFound(id)
		}
		return domain.SessionSnapshot{}, fmt.Errorf("failed to get session: %w", err)
	}
	return row.snapshot()
}

func (r *PostgresSessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepository) DeleteIdle(ctx context.Context, before time.Time) ([]string, error) {
	var ids []string
	query := `DELETE FROM sessions WHERE updated_at < $1 RETURNING id`

	if err := r.db.SelectContext(ctx, &ids, query, before); err != nil {
		return nil, fmt.Errorf("failed to delete idle sessions: %w", err)
	}
	return ids, nil
}

func (r *PostgresSessionRepository) Close() error {
	return r.db.Close()
}

func (row sessionRow) snapshot() (domain.SessionSnapshot, error) {
	snap := domain.SessionSnapshot{
		ID:        row.ID,
		View:      domain.View(row.View),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Owned, &snap.Owned); err != nil {
		return snap, fmt.Errorf("failed to decode owned navigation: %w", err)
	}
	if err := json.Unmarshal(row.Shared, &snap.Shared); err != nil {
		return snap, fmt.Errorf("failed to decode shared navigation: %w", err)
	}
	return snap, nil
}
