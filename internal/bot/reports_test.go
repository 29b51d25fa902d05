package bot

import (
	"strings"
	"testing"
	"time"

	"classbot/internal/services/announce"
	"classbot/internal/transport"
)

func TestProgressBar(t *testing.T) {
	t.Parallel()
	tests := []struct {
		percent float64
		want    string
	}{
		{0, "░░░░░░░░░░"},
		{9.9, "░░░░░░░░░░"},
		{10, "▓░░░░░░░░░"},
		{55, "▓▓▓▓▓░░░░░"},
		{100, "▓▓▓▓▓▓▓▓▓▓"},
		{150, "▓▓▓▓▓▓▓▓▓▓"},
	}
	for _, tt := range tests {
		if got := progressBar(tt.percent); got != tt.want {
			t.Errorf("progressBar(%v) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}

func TestStatsReport(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC().Format(time.RFC3339)
	anns := []announce.Record{
		{ID: "aaaa1111", Timestamp: now, Kind: transport.KindText, Content: "exam tomorrow"},
		{ID: "bbbb2222", Timestamp: now, Kind: transport.KindPDF, Content: "syllabus"},
	}
	receipts := map[string][]int64{
		"aaaa1111": {1, 2, 3},
		"bbbb2222": {1},
	}

	got := statsReport(anns, receipts, 4, 10)

	for _, want := range []string{
		"aaaa1111", "bbbb2222",
		"3/4 (75.0%)", "1/4 (25.0%)",
		"Announcements: 2",
		"Subscribers: 4",
		"Acknowledgements: 4",
		"Average read rate: 50.0%",
		"after 10 days",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("stats report missing %q:\n%s", want, got)
		}
	}
}

func TestReadReportCapsUnreadList(t *testing.T) {
	t.Parallel()
	rec := announce.Record{ID: "cccc3333", Kind: transport.KindText, Content: "hello"}
	subscribers := make([]int64, 30)
	for i := range subscribers {
		subscribers[i] = int64(i + 1)
	}
	readers := []int64{1, 2}

	got := readReport(rec, readers, subscribers)

	if !strings.Contains(got, "Acknowledged (2)") {
		t.Errorf("missing readers section:\n%s", got)
	}
	if !strings.Contains(got, "Not yet acknowledged (28)") {
		t.Errorf("missing unread section:\n%s", got)
	}
	if !strings.Contains(got, "and 8 more...") {
		t.Errorf("unread list not capped at 20:\n%s", got)
	}
}

func TestPreviewTruncates(t *testing.T) {
	t.Parallel()
	rec := announce.Record{Content: strings.Repeat("x", 80)}
	got := preview(rec)
	if len([]rune(got)) != previewRunes+1 { // +1 for the ellipsis
		t.Fatalf("preview length = %d runes", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("preview not ellipsized: %q", got)
	}

	if got := preview(announce.Record{Caption: "cap only"}); got != "cap only" {
		t.Fatalf("caption fallback = %q", got)
	}
	if got := preview(announce.Record{}); got != "(no text)" {
		t.Fatalf("empty preview = %q", got)
	}
}

func TestFormatStamp(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	old := time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC).Format(time.RFC3339)
	if got := formatStamp(old, now); !strings.Contains(got, "(3 days ago)") {
		t.Fatalf("formatStamp old = %q", got)
	}
	today := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC).Format(time.RFC3339)
	if got := formatStamp(today, now); !strings.Contains(got, "(today)") {
		t.Fatalf("formatStamp today = %q", got)
	}
	if got := formatStamp("garbage", now); got != "unknown date" {
		t.Fatalf("formatStamp garbage = %q", got)
	}
}
