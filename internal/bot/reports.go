package bot

import (
	"fmt"
	"strings"
	"time"

	"classbot/internal/services/announce"
	"classbot/internal/services/broadcast"
	"classbot/internal/transport"
	"classbot/pkg/tgui"
)

const previewRunes = 50

var kindEmoji = map[transport.ContentKind]string{
	transport.KindText:     "📝",
	transport.KindPhoto:    "🖼️",
	transport.KindDocument: "📄",
	transport.KindPDF:      "📕",
	transport.KindAudio:    "🎵",
	transport.KindVideo:    "🎬",
}

func emojiFor(kind transport.ContentKind) string {
	if e, ok := kindEmoji[kind]; ok {
		return e
	}
	return "📌"
}

// progressBar renders a ten-cell bar for a 0-100 percentage.
func progressBar(percent float64) string {
	cells := int(percent / 10)
	if cells < 0 {
		cells = 0
	}
	if cells > 10 {
		cells = 10
	}
	return strings.Repeat("▓", cells) + strings.Repeat("░", 10-cells)
}

func percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func preview(rec announce.Record) string {
	content := rec.Content
	if content == "" {
		content = rec.Caption
	}
	if content == "" {
		return "(no text)"
	}
	return tgui.TruncRunes(content, previewRunes)
}

func formatStamp(ts string, now time.Time) string {
	at, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return "unknown date"
	}
	out := at.Format("2006/01/02 15:04")
	if days := int(now.Sub(at).Hours() / 24); days > 0 {
		out += fmt.Sprintf(" (%d days ago)", days)
	} else {
		out += " (today)"
	}
	return out
}

// statsReport renders the /stats body: one block per announcement
// (newest first) plus a totals summary.
func statsReport(anns []announce.Record, receipts map[string][]int64, totalStudents, retentionDays int) string {
	var b strings.Builder
	b.WriteString("📊 Announcement statistics\n")

	now := time.Now()
	totalReads := 0
	for i, rec := range anns {
		readCount := len(receipts[rec.ID])
		totalReads += readCount
		pct := percentage(readCount, totalStudents)
		fmt.Fprintf(&b, "\n%d. %s #%s (%s)\n   📋 %s\n   %s %d/%d (%.1f%%)\n",
			i+1, emojiFor(rec.Kind), rec.ID, formatStamp(rec.Timestamp, now),
			preview(rec), progressBar(pct), readCount, totalStudents, pct)
	}

	avgRate := 0.0
	if len(anns) > 0 && totalStudents > 0 {
		avgRate = float64(totalReads) / float64(len(anns)*totalStudents) * 100
	}

	b.WriteString("\n" + strings.Repeat("=", 30) + "\n")
	b.WriteString("📈 Summary:\n")
	fmt.Fprintf(&b, "• Announcements: %d\n", len(anns))
	fmt.Fprintf(&b, "• Subscribers: %d\n", totalStudents)
	fmt.Fprintf(&b, "• Acknowledgements: %d\n", totalReads)
	fmt.Fprintf(&b, "• Average read rate: %.1f%%\n", avgRate)
	fmt.Fprintf(&b, "\n🗑️ Announcements are removed automatically after %d days", retentionDays)
	return b.String()
}

func broadcastReport(rec announce.Record, rep broadcast.Report, total int) string {
	var b strings.Builder
	b.WriteString("📊 Broadcast report:\n\n")
	fmt.Fprintf(&b, "• Announcement: %s\n", rec.ID)
	fmt.Fprintf(&b, "• Type: %s\n", rec.Kind)
	fmt.Fprintf(&b, "• Delivered: %d of %d subscribers\n", rep.Sent, total)
	if len(rep.Failed) > 0 {
		fmt.Fprintf(&b, "• Failed: %d subscribers\n", len(rep.Failed))
	}
	fmt.Fprintf(&b, "\n📝 Preview: %s", preview(rec))
	return b.String()
}

// readReport renders /read <id>: readers first, then up to maxUnreadShown
// of the subscribers who have not acknowledged yet.
const maxUnreadShown = 20

func readReport(rec announce.Record, readers, subscribers []int64) string {
	readSet := make(map[int64]bool, len(readers))
	for _, id := range readers {
		readSet[id] = true
	}
	var unread []int64
	for _, id := range subscribers {
		if !readSet[id] {
			unread = append(unread, id)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📄 Announcement %s (%s)\n📋 %s\n\n", rec.ID, rec.Kind, preview(rec))
	pct := percentage(len(readers), len(subscribers))
	fmt.Fprintf(&b, "%s %d/%d (%.1f%%)\n", progressBar(pct), len(readers), len(subscribers), pct)

	if len(readers) > 0 {
		fmt.Fprintf(&b, "\n👥 Acknowledged (%d):\n", len(readers))
		for i := 0; i < len(readers); i += 10 {
			end := i + 10
			if end > len(readers) {
				end = len(readers)
			}
			b.WriteString(joinIDs(readers[i:end]) + "\n")
		}
	}
	if len(unread) > 0 {
		fmt.Fprintf(&b, "\n📭 Not yet acknowledged (%d):\n", len(unread))
		shown := unread
		if len(shown) > maxUnreadShown {
			shown = shown[:maxUnreadShown]
		}
		b.WriteString(joinIDs(shown) + "\n")
		if rest := len(unread) - len(shown); rest > 0 {
			fmt.Fprintf(&b, "and %d more...\n", rest)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// readAllReport renders /read_all: one progress line per announcement.
func readAllReport(anns []announce.Record, receipts map[string][]int64, totalStudents int) string {
	var b strings.Builder
	b.WriteString("📖 Read summary\n")
	for i, rec := range anns {
		readCount := len(receipts[rec.ID])
		pct := percentage(readCount, totalStudents)
		fmt.Fprintf(&b, "\n%d. %s #%s\n   %s %d/%d (%.1f%%)\n",
			i+1, emojiFor(rec.Kind), rec.ID, progressBar(pct), readCount, totalStudents, pct)
	}
	return strings.TrimRight(b.String(), "\n")
}

func subscribersReport(ids []int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Subscribers (%d):\n\n", len(ids))
	for i, id := range ids {
		fmt.Fprintf(&b, "%d. %d\n", i+1, id)
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
