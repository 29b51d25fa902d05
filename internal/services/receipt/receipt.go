// Package receipt manages read receipts: a JSON object mapping an
// announcement id to the set of subscribers who acknowledged it
// (stored as an array, deduplicated on write, grown but never shrunk
// except by cascade delete).
package receipt

import (
	"context"
	"errors"

	"classbot/internal/docstore"
	"classbot/pkg/logx"
)

var (
	ErrEmptyAnnouncementID = errors.New("receipt: announcement id must not be empty")
	ErrInvalidUserID       = errors.New("receipt: user id must be a positive integer")
)

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

// MarkRead records that userID acknowledged announcementID.
//
// duplicate reports whether the user was already recorded; in that case the
// cycle changes nothing. The flag is computed inside the atomic cycle, so a
// first-time ack and a repeat click are distinguished without a second
// round trip even under concurrent clicks.
func (m *Manager) MarkRead(ctx context.Context, announcementID string, userID int64) (duplicate bool, err error) {
	if announcementID == "" {
		return false, ErrEmptyAnnouncementID
	}
	if userID <= 0 {
		return false, ErrInvalidUserID
	}

	_, err = docstore.Update(ctx, m.store, m.path, map[string][]int64{}, func(cur map[string][]int64) map[string][]int64 {
		if cur == nil {
			cur = map[string][]int64{}
		}
		users := cur[announcementID]
		for _, u := range users {
			if u == userID {
				duplicate = true
				return cur
			}
		}
		cur[announcementID] = append(users, userID)
		return cur
	})
	if err != nil {
		m.log.Error("mark read failed",
			logx.String("announcement_id", announcementID), logx.Int64("user_id", userID), logx.Err(err))
		return false, err
	}
	return duplicate, nil
}

// Users returns the valid subscriber ids recorded for announcementID.
func (m *Manager) Users(ctx context.Context, announcementID string) []int64 {
	if announcementID == "" {
		return nil
	}
	all := docstore.Load(ctx, m.store, m.path, map[string][]int64{})
	return filterIDs(all[announcementID])
}

// Count returns how many subscribers acknowledged announcementID.
func (m *Manager) Count(ctx context.Context, announcementID string) int {
	return len(m.Users(ctx, announcementID))
}

// All returns every receipt entry, identifier-filtered on read.
func (m *Manager) All(ctx context.Context) map[string][]int64 {
	stored := docstore.Load(ctx, m.store, m.path, map[string][]int64{})
	out := make(map[string][]int64, len(stored))
	for id, users := range stored {
		if id == "" {
			continue
		}
		out[id] = filterIDs(users)
	}
	return out
}

func filterIDs(in []int64) []int64 {
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if id > 0 {
			out = append(out, id)
		}
	}
	return out
}
