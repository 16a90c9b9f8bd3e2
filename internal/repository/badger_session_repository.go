package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"drivelens/internal/domain"
)

const sessionKeyPrefix = "session:"

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

// BadgerSessionRepository keeps sessions in an embedded badger database as
// JSON values under "session:<id>".
type BadgerSessionRepository struct {
	db *badger.DB
}

// OpenBadgerSessionRepository opens the database in dir. An empty dir opens
// an in-memory database.
func OpenBadgerSessionRepository(dir string) (*BadgerSessionRepository, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	return &BadgerSessionRepository{db: db}, nil
}

func (r *BadgerSessionRepository) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		now := time.Now().UTC()
		prev, err := getSnapshot(txn, snap.ID)
		switch {
		case err == nil:
			snap.CreatedAt = prev.CreatedAt
		case errors.Is(err, badger.ErrKeyNotFound):
			if snap.CreatedAt.IsZero() {
				snap.CreatedAt = now
			}
		default:
			return err
		}
		snap.UpdatedAt = now

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		return txn.Set(sessionKey(snap.ID), data)
	})
}

func (r *BadgerSessionRepository) Get(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionSnapshot{}, err
	}

	var snap domain.SessionSnapshot
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		snap, err = getSnapshot(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.SessionSnapshot{}, sessionNotFound(id)
	}
	return snap, err
}

func (r *BadgerSessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(id))
	})
}

func (r *BadgerSessionRepository) DeleteIdle(ctx context.Context, before time.Time) ([]string, error) {
	var ids []string
	err := r.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		var expired [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var snap domain.SessionSnapshot
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return fmt.Errorf("failed to decode session: %w", err)
			}
			if snap.UpdatedAt.Before(before) {
				ids = append(ids, snap.ID)
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		for _, key := range expired {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *BadgerSessionRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger: %w", err)
	}
	return nil
}

func getSnapshot(txn *badger.Txn, id string) (domain.SessionSnapshot, error) {
	var snap domain.SessionSnapshot
	item, err := txn.Get(sessionKey(id))
	if err != nil {
		return snap, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &snap)
	})
	return snap, err
}
