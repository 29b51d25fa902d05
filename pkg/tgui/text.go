package tgui

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLen is Telegram's message text size limit in UTF-16 code units;
// staying under it in runes is a safe approximation for chunking.
const MaxMessageLen = 4096

// TruncRunes returns s truncated to at most n runes.
// It appends an ellipsis "…" when truncated.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	cut := 0
	for i, r := range s {
		count++
		if count == n {
			cut = i + utf8.RuneLen(r)
			continue
		}
		if count > n {
			if cut <= 0 {
				cut = i
			}
			return s[:cut] + "…"
		}
	}
	return s
}

// ClipRunes hard-clips s to at most n runes, without an ellipsis.
func ClipRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Chunk splits s into pieces of at most limit runes each, preferring to
// break on line boundaries. A single line longer than limit is split mid-line.
func Chunk(s string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.Split(s, "\n") {
		n := utf8.RuneCountInString(line)
		if n > limit {
			flush()
			for utf8.RuneCountInString(line) > limit {
				head := ClipRunes(line, limit)
				chunks = append(chunks, head)
				line = line[len(head):]
			}
			if line != "" {
				cur.WriteString(line)
				cur.WriteString("\n")
				curLen = utf8.RuneCountInString(line) + 1
			}
			continue
		}
		if curLen+n+1 > limit {
			flush()
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		curLen += n + 1
	}
	flush()
	return chunks
}
