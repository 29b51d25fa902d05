// Package retention expires old announcements and their read receipts.
//
// Every announcement older than the retention window is removed together
// with its receipt entry inside one storage transaction, so a broadcast
// that starts mid-sweep never observes an announcement whose receipts are
// already gone.
package retention

import (
	"context"
	"errors"
	"time"

	"classbot/internal/docstore"
	"classbot/internal/services/announce"
	"classbot/pkg/logx"
)

// DefaultDays is the retention window applied when the configuration
// does not override it.
const DefaultDays = 10

var ErrNotFound = errors.New("retention: announcement not found")

type Sweeper struct {
	store    *docstore.Store
	annPath  string
	rcptPath string
	window   time.Duration
	log      logx.Logger

	now func() time.Time
}

func New(store *docstore.Store, annPath, rcptPath string, days int, log logx.Logger) *Sweeper {
	if days <= 0 {
		days = DefaultDays
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sweeper{
		store:    store,
		annPath:  annPath,
		rcptPath: rcptPath,
		window:   time.Duration(days) * 24 * time.Hour,
		log:      log,
		now:      time.Now,
	}
}

// Sweep removes every announcement whose timestamp is older than the
// retention window, cascading to its read receipts. Records whose
// timestamp cannot be parsed are treated as expired. It returns the
// number of announcements removed; when nothing expired, neither
// document is rewritten.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.window)

	removed := 0
	err := s.store.Batch(ctx, func(tx *docstore.Tx) error {
		anns, err := docstore.ReadTx(tx, s.annPath, map[string]announce.Record{})
		if err != nil {
			return err
		}

		var expired []string
		for id, rec := range anns {
			at, perr := time.Parse(time.RFC3339, rec.Timestamp)
			if perr != nil || at.Before(cutoff) {
				if perr != nil {
					s.log.Warn("unreadable timestamp, expiring announcement",
						logx.String("id", id), logx.String("timestamp", rec.Timestamp))
				}
				expired = append(expired, id)
			}
		}
		if len(expired) == 0 {
			return nil
		}

		rcpts, err := docstore.ReadTx(tx, s.rcptPath, map[string][]int64{})
		if err != nil {
			return err
		}
		for _, id := range expired {
			delete(anns, id)
			delete(rcpts, id)
		}
		if err := docstore.WriteTx(tx, s.annPath, anns); err != nil {
			return err
		}
		if err := docstore.WriteTx(tx, s.rcptPath, rcpts); err != nil {
			return err
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		s.log.Error("retention sweep failed", logx.Err(err))
		return 0, err
	}
	if removed > 0 {
		s.log.Info("retention sweep", logx.Int("removed", removed))
	}
	return removed, nil
}

// Delete removes a single announcement and its read receipts. It
// returns ErrNotFound when no announcement carries the given id.
func (s *Sweeper) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	return s.store.Batch(ctx, func(tx *docstore.Tx) error {
		anns, err := docstore.ReadTx(tx, s.annPath, map[string]announce.Record{})
		if err != nil {
			return err
		}
		if _, ok := anns[id]; !ok {
			return ErrNotFound
		}
		delete(anns, id)

		rcpts, err := docstore.ReadTx(tx, s.rcptPath, map[string][]int64{})
		if err != nil {
			return err
		}
		delete(rcpts, id)

		if err := docstore.WriteTx(tx, s.annPath, anns); err != nil {
			return err
		}
		return docstore.WriteTx(tx, s.rcptPath, rcpts)
	})
}
