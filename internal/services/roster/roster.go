// Package roster manages the subscriber set: a JSON array of positive
// Telegram user ids, unique, insertion order irrelevant.
package roster

import (
	"context"
	"errors"

	"classbot/internal/docstore"
	"classbot/pkg/logx"
)

// ErrInvalidUserID rejects non-positive subscriber ids before any storage
// access.
var ErrInvalidUserID = errors.New("roster: user id must be a positive integer")

type Manager struct {
	store *docstore.Store
	path  string
	log   logx.Logger
}

func New(store *docstore.Store, path string, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{store: store, path: path, log: log}
}

// Add subscribes id. Adding an existing subscriber is a no-op success.
func (m *Manager) Add(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidUserID
	}
	_, err := docstore.Update(ctx, m.store, m.path, []int64{}, func(cur []int64) []int64 {
		for _, v := range cur {
			if v == id {
				return cur
			}
		}
		return append(cur, id)
	})
	if err != nil {
		m.log.Error("subscriber add failed", logx.Int64("user_id", id), logx.Err(err))
		return err
	}
	return nil
}

// Remove unsubscribes id. Removing an absent subscriber is a no-op success.
func (m *Manager) Remove(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidUserID
	}
	_, err := docstore.Update(ctx, m.store, m.path, []int64{}, func(cur []int64) []int64 {
		out := make([]int64, 0, len(cur))
		for _, v := range cur {
			if v != id {
				out = append(out, v)
			}
		}
		return out
	})
	if err != nil {
		m.log.Error("subscriber remove failed", logx.Int64("user_id", id), logx.Err(err))
		return err
	}
	return nil
}

// List returns all stored subscriber ids, re-validated on every read: the
// store enforces no schema, so invalid entries are filtered out here.
func (m *Manager) List(ctx context.Context) []int64 {
	stored := docstore.Load(ctx, m.store, m.path, []int64{})
	out := make([]int64, 0, len(stored))
	for _, id := range stored {
		if id > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Contains reports whether id is currently subscribed.
func (m *Manager) Contains(ctx context.Context, id int64) bool {
	for _, v := range m.List(ctx) {
		if v == id {
			return true
		}
	}
	return false
}

func (m *Manager) Count(ctx context.Context) int {
	return len(m.List(ctx))
}
