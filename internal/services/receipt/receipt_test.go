package receipt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"classbot/internal/docstore"
	"classbot/pkg/logx"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "read_receipts.json")
	return New(docstore.New(docstore.NewMutex(), logx.Nop()), path, logx.Nop()), path
}

func TestMarkReadFirstThenDuplicate(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	ctx := context.Background()

	dup, err := m.MarkRead(ctx, "ab12cd34", 7)
	if err != nil {
		t.Fatalf("first MarkRead: %v", err)
	}
	if dup {
		t.Fatal("first ack reported as duplicate")
	}

	dup, err = m.MarkRead(ctx, "ab12cd34", 7)
	if err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if !dup {
		t.Fatal("repeat ack not reported as duplicate")
	}

	if got := m.Count(ctx, "ab12cd34"); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
}

func TestMarkReadConcurrentSameUser(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	ctx := context.Background()

	const n = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firsts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dup, err := m.MarkRead(ctx, "aaaa0000", 3)
			if err != nil {
				t.Errorf("MarkRead: %v", err)
				return
			}
			if !dup {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Fatalf("%d cycles saw a first-time ack, want exactly 1", firsts)
	}
	if got := m.Count(ctx, "aaaa0000"); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
}

func TestMarkReadValidation(t *testing.T) {
	t.Parallel()
	m, path := newTestManager(t)
	ctx := context.Background()

	if _, err := m.MarkRead(ctx, "", 1); !errors.Is(err, ErrEmptyAnnouncementID) {
		t.Fatalf("err = %v, want ErrEmptyAnnouncementID", err)
	}
	if _, err := m.MarkRead(ctx, "ab12cd34", 0); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("err = %v, want ErrInvalidUserID", err)
	}
	if _, err := m.MarkRead(ctx, "ab12cd34", -2); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("err = %v, want ErrInvalidUserID", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("rejected acks must not touch storage")
	}
}

func TestReadViewsFilterInvalidEntries(t *testing.T) {
	t.Parallel()
	m, path := newTestManager(t)
	ctx := context.Background()

	raw := `{"ab12cd34": [1, -2, 0, 5], "": [9]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	users := m.Users(ctx, "ab12cd34")
	if len(users) != 2 || users[0] != 1 || users[1] != 5 {
		t.Fatalf("Users = %v, want [1 5]", users)
	}
	all := m.All(ctx)
	if len(all) != 1 {
		t.Fatalf("All = %v, want only the non-empty key", all)
	}
	if m.Count(ctx, "missing") != 0 {
		t.Fatal("Count for unknown announcement should be 0")
	}
}
