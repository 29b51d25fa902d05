// Package announce manages announcement records: a JSON object keyed by a
// short opaque id, one entry per broadcast.
package announce

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"classbot/internal/docstore"
	"classbot/internal/transport"
	"classbot/pkg/logx"
	"classbot/pkg/tgui"
)

const (
	// IDLength is the length of announcement identifiers: the first 8 hex
	// characters of a random UUID. Not globally unique, but practically so
	// for a store that retains days of announcements.
	IDLength = 8

	maxContentRunes = 500
	maxCaptionRunes = 200
)

var (
	ErrEmptyID        = errors.New("announce: id must not be empty")
	ErrMissingSender  = errors.New("announce: sender id is required")
	ErrMissingMessage = errors.New("announce: origin message id is required")
)

type Manager struct {
	store *docstore.Store
	path  string
	log   logx.Logger

	now func() time.Time // swappable for tests
}

func New(store *docstore.Store, path string, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{store: store, path: path, log: log, now: time.Now}
}

// NewID returns a fresh announcement identifier.
func NewID() string {
	return uuid.NewString()[:IDLength]
}

// Create stores a new announcement under id. It stamps the current time,
// clips content/caption, and falls back to the caption when the content is
// empty, so a bare media broadcast still has displayable text.
func (m *Manager) Create(ctx context.Context, id string, d Draft) error {
	if id == "" {
		return ErrEmptyID
	}
	if d.SenderID <= 0 {
		return ErrMissingSender
	}
	if d.MessageID == 0 {
		return ErrMissingMessage
	}

	kind := d.Kind
	if !kind.Valid() {
		kind = transport.KindText
	}
	rec := Record{
		ID:           id,
		Timestamp:    m.now().Format(time.RFC3339),
		Kind:         kind,
		SenderID:     d.SenderID,
		MessageID:    d.MessageID,
		Content:      tgui.ClipRunes(d.Content, maxContentRunes),
		Caption:      tgui.ClipRunes(d.Caption, maxCaptionRunes),
		FileID:       d.FileID,
		FileName:     d.FileName,
		MediaGroupID: d.MediaGroupID,
	}
	if rec.Content == "" && rec.Caption != "" {
		rec.Content = rec.Caption
	}

	_, err := docstore.Update(ctx, m.store, m.path, map[string]Record{}, func(cur map[string]Record) map[string]Record {
		if cur == nil {
			cur = map[string]Record{}
		}
		cur[id] = rec
		return cur
	})
	if err != nil {
		m.log.Error("announcement create failed", logx.String("id", id), logx.Err(err))
		return err
	}
	m.log.Info("announcement created",
		logx.String("id", id), logx.String("kind", string(kind)), logx.Int64("sender_id", d.SenderID))
	return nil
}

// Get returns the announcement stored under id, if any.
func (m *Manager) Get(ctx context.Context, id string) (Record, bool) {
	if id == "" {
		return Record{}, false
	}
	all := docstore.Load(ctx, m.store, m.path, map[string]Record{})
	rec, ok := all[id]
	return rec, ok
}

func (m *Manager) Exists(ctx context.Context, id string) bool {
	_, ok := m.Get(ctx, id)
	return ok
}

func (m *Manager) Count(ctx context.Context) int {
	return len(docstore.Load(ctx, m.store, m.path, map[string]Record{}))
}

// All returns the valid announcements, newest first. Records whose key does
// not match their embedded id are treated as corrupt and excluded; validity
// is re-checked on every read since the store enforces no schema.
// Equal timestamps keep a deterministic order (id ascending).
func (m *Manager) All(ctx context.Context) []Record {
	stored := docstore.Load(ctx, m.store, m.path, map[string]Record{})
	out := make([]Record, 0, len(stored))
	for key, rec := range stored {
		if rec.ID != key {
			m.log.Warn("dropping corrupt announcement record",
				logx.String("key", key), logx.String("embedded_id", rec.ID))
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		// RFC 3339 timestamps with equal offsets order lexicographically.
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}
