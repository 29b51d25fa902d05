package retention

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"classbot/internal/docstore"
	"classbot/internal/services/announce"
	"classbot/pkg/logx"
)

func newTestSweeper(t *testing.T) (*Sweeper, *docstore.Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	annPath := filepath.Join(dir, "announcements.json")
	rcptPath := filepath.Join(dir, "read_receipts.json")
	store := docstore.New(docstore.NewMutex(), logx.Nop())
	return New(store, annPath, rcptPath, DefaultDays, logx.Nop()), store, annPath, rcptPath
}

func stamp(age time.Duration) string {
	return time.Now().Add(-age).UTC().Format(time.RFC3339)
}

func record(id, ts string) announce.Record {
	return announce.Record{
		ID:        id,
		Timestamp: ts,
		Kind:      "text",
		SenderID:  1,
		MessageID: 1,
		Content:   "x",
	}
}

func TestSweepRemovesExpiredAndCascades(t *testing.T) {
	t.Parallel()
	sw, store, annPath, rcptPath := newTestSweeper(t)
	ctx := context.Background()

	anns := map[string]announce.Record{
		"old00000": record("old00000", stamp(11*24*time.Hour)),
		"new00000": record("new00000", stamp(9*24*time.Hour)),
		"junk0000": record("junk0000", "yesterday-ish"),
	}
	rcpts := map[string][]int64{
		"old00000": {1, 2},
		"new00000": {3},
	}
	if err := docstore.Save(ctx, store, annPath, anns); err != nil {
		t.Fatal(err)
	}
	if err := docstore.Save(ctx, store, rcptPath, rcpts); err != nil {
		t.Fatal(err)
	}

	removed, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	gotAnns := docstore.Load(ctx, store, annPath, map[string]announce.Record{})
	if len(gotAnns) != 1 {
		t.Fatalf("announcements after sweep = %v, want only the recent one", gotAnns)
	}
	if _, ok := gotAnns["new00000"]; !ok {
		t.Fatal("recent announcement must survive the sweep")
	}

	gotRcpts := docstore.Load(ctx, store, rcptPath, map[string][]int64{})
	if _, ok := gotRcpts["old00000"]; ok {
		t.Fatal("receipts for an expired announcement must be removed")
	}
	if _, ok := gotRcpts["new00000"]; !ok {
		t.Fatal("receipts for a surviving announcement must be kept")
	}
}

func TestSweepNothingExpiredLeavesFilesUntouched(t *testing.T) {
	t.Parallel()
	sw, store, annPath, rcptPath := newTestSweeper(t)
	ctx := context.Background()

	anns := map[string]announce.Record{
		"new00000": record("new00000", stamp(24*time.Hour)),
	}
	if err := docstore.Save(ctx, store, annPath, anns); err != nil {
		t.Fatal(err)
	}

	removed, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if _, err := os.Stat(rcptPath); !os.IsNotExist(err) {
		t.Fatal("an empty sweep must not create the receipts document")
	}
}

func TestSweepPropagatesUnreadableDocument(t *testing.T) {
	t.Parallel()
	sw, _, annPath, _ := newTestSweeper(t)
	ctx := context.Background()

	if err := os.WriteFile(annPath, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := sw.Sweep(ctx); err == nil {
		t.Fatal("sweep over a corrupt document must fail, not delete blindly")
	}
}

func TestDeleteCascades(t *testing.T) {
	t.Parallel()
	sw, store, annPath, rcptPath := newTestSweeper(t)
	ctx := context.Background()

	anns := map[string]announce.Record{
		"keep0000": record("keep0000", stamp(time.Hour)),
		"gone0000": record("gone0000", stamp(time.Hour)),
	}
	rcpts := map[string][]int64{"gone0000": {4, 5}}
	if err := docstore.Save(ctx, store, annPath, anns); err != nil {
		t.Fatal(err)
	}
	if err := docstore.Save(ctx, store, rcptPath, rcpts); err != nil {
		t.Fatal(err)
	}

	if err := sw.Delete(ctx, "gone0000"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	gotAnns := docstore.Load(ctx, store, annPath, map[string]announce.Record{})
	if _, ok := gotAnns["gone0000"]; ok {
		t.Fatal("deleted announcement still present")
	}
	if _, ok := gotAnns["keep0000"]; !ok {
		t.Fatal("unrelated announcement removed")
	}
	gotRcpts := docstore.Load(ctx, store, rcptPath, map[string][]int64{})
	if _, ok := gotRcpts["gone0000"]; ok {
		t.Fatal("receipts for deleted announcement still present")
	}

	if err := sw.Delete(ctx, "gone0000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
	if err := sw.Delete(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty id err = %v, want ErrNotFound", err)
	}
}
