package roster

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
	path := filepath.Join(t.TempDir(), "subscribers.json")
	return New(docstore.New(docstore.NewMutex(), logx.Nop()), path, logx.Nop()), path
}

func TestAddIsIdempotent(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.Add(ctx, 100); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Add(ctx, 100); err != nil {
		t.Fatalf("second Add: %v", err)
	}
	got := m.List(ctx)
	if len(got) != 1 || got[0] != 100 {
		t.Fatalf("List = %v, want [100]", got)
	}
}

func TestConcurrentAddSameID(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Add(ctx, 42); err != nil {
				t.Errorf("Add: %v", err)
			}
		}()
	}
	wg.Wait()

	occurrences := 0
	for _, id := range m.List(ctx) {
		if id == 42 {
			occurrences++
		}
	}
	if occurrences != 1 {
		t.Fatalf("id stored %d times, want exactly once", occurrences)
	}
}

func TestRemoveThenAdd(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if err := m.Add(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Remove(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(ctx, 2); err != nil {
		t.Fatal(err)
	}

	occurrences := 0
	for _, id := range m.List(ctx) {
		if id == 2 {
			occurrences++
		}
	}
	if occurrences != 1 {
		t.Fatalf("id present %d times after remove+add, want exactly once", occurrences)
	}
	if m.Count(ctx) != 3 {
		t.Fatalf("Count = %d, want 3", m.Count(ctx))
	}
}

func TestRemoveAbsentIsNoopSuccess(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	if err := m.Remove(context.Background(), 9); err != nil {
		t.Fatalf("Remove absent: %v", err)
	}
}

func TestInvalidIDsRejectedBeforeStorage(t *testing.T) {
	t.Parallel()
	m, path := newTestManager(t)
	ctx := context.Background()

	for _, id := range []int64{0, -5} {
		if err := m.Add(ctx, id); !errors.Is(err, ErrInvalidUserID) {
			t.Fatalf("Add(%d) err = %v, want ErrInvalidUserID", id, err)
		}
		if err := m.Remove(ctx, id); !errors.Is(err, ErrInvalidUserID) {
			t.Fatalf("Remove(%d) err = %v, want ErrInvalidUserID", id, err)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("rejected operations must not touch storage")
	}
}

func TestListFiltersInvalidEntries(t *testing.T) {
	t.Parallel()
	m, path := newTestManager(t)
	if err := os.WriteFile(path, []byte("[5, -1, 0, 9]"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := m.List(context.Background())
	if len(got) != 2 || got[0] != 5 || got[1] != 9 {
		t.Fatalf("List = %v, want [5 9]", got)
	}
	if !m.Contains(context.Background(), 9) {
		t.Fatal("Contains(9) = false, want true")
	}
	if m.Contains(context.Background(), -1) {
		t.Fatal("Contains(-1) = true, want false")
	}
}
