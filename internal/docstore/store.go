package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"classbot/pkg/logx"
)

// ErrShape marks documents whose top-level JSON value is not an object
// or array.
var ErrShape = errors.New("top-level JSON value must be an object or array")

// Store is a small file-backed JSON document store. All operations on all
// documents contend on the one Locker, which makes each read-modify-write
// cycle atomic relative to every other cycle and every reader.
type Store struct {
	lk  Locker
	log logx.Logger
}

func New(lk Locker, log logx.Logger) *Store {
	if lk == nil {
		lk = NewMutex()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{lk: lk, log: log}
}

// Tx gives Batch callbacks access to documents while the store lock is
// already held. It must not escape the callback.
type Tx struct {
	s *Store
}

// run executes fn under the store lock.
//
// If ctx expires while fn is still running, the caller is released with an
// error but fn keeps running in the background and the lock is released
// only when it completes. A slow file operation therefore never breaks
// atomicity; it only delays later cycles.
func run[T any](ctx context.Context, s *Store, fn func(tx *Tx) (T, error)) (T, error) {
	var zero T
	if err := s.lk.Lock(ctx); err != nil {
		return zero, fmt.Errorf("acquire document lock: %w", err)
	}

	type result struct {
		doc T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer s.lk.Unlock()
		doc, err := fn(&Tx{s: s})
		done <- result{doc: doc, err: err}
	}()

	select {
	case r := <-done:
		return r.doc, r.err
	case <-ctx.Done():
		return zero, fmt.Errorf("document cycle abandoned: %w", ctx.Err())
	}
}

// Batch runs fn as one critical section over any number of documents.
// Cross-document operations (cascade deletes, the retention sweep) use it
// so their reads and writes serialize as a unit.
func (s *Store) Batch(ctx context.Context, fn func(tx *Tx) error) error {
	_, err := run(ctx, s, func(tx *Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// Load returns the document at path, or def when the file is missing,
// unparsable, or of the wrong shape. Failures are logged, never returned:
// consumers re-validate contents on every read anyway.
func Load[T any](ctx context.Context, s *Store, path string, def T) T {
	doc, err := run(ctx, s, func(tx *Tx) (T, error) {
		return ReadTx(tx, path, def)
	})
	if err != nil {
		s.log.Warn("document unreadable, substituting default",
			logx.String("path", path), logx.Err(err))
		return def
	}
	return doc
}

// Save validates and persists doc at path.
func Save[T any](ctx context.Context, s *Store, path string, doc T) error {
	_, err := run(ctx, s, func(tx *Tx) (struct{}, error) {
		return struct{}{}, WriteTx(tx, path, doc)
	})
	return err
}

// Update performs one atomic read-modify-write cycle on the document at
// path and returns the persisted result.
//
// The read is strict: an unparsable existing file aborts this cycle with an
// error instead of silently substituting def — mutating a default over a
// corrupt-but-present file would discard its contents on write.
// mutate must be pure: no I/O, and it must return a document of the
// correct shape (a nil map or slice encodes as JSON null and is rejected).
func Update[T any](ctx context.Context, s *Store, path string, def T, mutate func(cur T) T) (T, error) {
	return run(ctx, s, func(tx *Tx) (T, error) {
		var zero T
		cur, err := ReadTx(tx, path, def)
		if err != nil {
			return zero, err
		}
		next := mutate(cur)
		if err := WriteTx(tx, path, next); err != nil {
			return zero, err
		}
		return next, nil
	})
}

// ReadTx reads the document at path inside an open Batch. A missing file
// yields def; anything else unreadable is an error.
func ReadTx[T any](tx *Tx, path string, def T) (T, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("read %s: %w", path, err)
	}
	if !shapeOK(raw) {
		return def, fmt.Errorf("read %s: %w", path, ErrShape)
	}
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return def, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// WriteTx validates and persists doc at path inside an open Batch.
// The write goes through a temp file and rename so a crash mid-write
// cannot leave a truncated document behind.
func WriteTx[T any](tx *Tx, path string, doc T) error {
	raw, err := encode(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if !shapeOK(raw) {
		return fmt.Errorf("save %s: %w", path, ErrShape)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	tx.s.log.Debug("document written", logx.String("path", path), logx.Int("bytes", len(raw)))
	return nil
}

// encode serializes with human-readable indentation and HTML escaping off,
// so stored text round-trips byte-for-byte readable.
func encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// shapeOK reports whether raw encodes a JSON object or array at the top level.
func shapeOK(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}
