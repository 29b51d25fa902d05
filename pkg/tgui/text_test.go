package tgui

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short stays", in: "hello", n: 10, want: "hello"},
		{name: "exact stays", in: "hello", n: 5, want: "hello"},
		{name: "truncated", in: "hello world", n: 5, want: "hello…"},
		{name: "multibyte", in: "héllo wörld", n: 5, want: "héllo…"},
		{name: "zero", in: "hello", n: 0, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncRunes(tt.in, tt.n); got != tt.want {
				t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestClipRunes(t *testing.T) {
	t.Parallel()
	if got := ClipRunes("héllo", 3); got != "hél" {
		t.Fatalf("ClipRunes = %q, want %q", got, "hél")
	}
	if got := ClipRunes("hi", 500); got != "hi" {
		t.Fatalf("ClipRunes = %q, want %q", got, "hi")
	}
	if got := ClipRunes("hi", 0); got != "" {
		t.Fatalf("ClipRunes = %q, want empty", got)
	}
}

func TestChunkRespectsLimit(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("line with some announcement text in it\n")
	}
	chunks := Chunk(b.String(), 200)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if utf8.RuneCountInString(c) > 200 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, utf8.RuneCountInString(c))
		}
	}
	joined := strings.Join(chunks, "\n") + "\n"
	if joined != b.String() {
		t.Fatal("chunks do not reassemble into the original text")
	}
}

func TestChunkLongLine(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 450)
	chunks := Chunk(long, 200)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
}

func TestCallbackDataRoundTrip(t *testing.T) {
	t.Parallel()
	d := Data("read", "ack", "ab12cd34")
	scope, action, payload := Split(d)
	if scope != "read" || action != "ack" || payload != "ab12cd34" {
		t.Fatalf("Split(%q) = %q %q %q", d, scope, action, payload)
	}

	d = Data("cleanup", "confirm", "")
	scope, action, payload = Split(d)
	if scope != "cleanup" || action != "confirm" || payload != "" {
		t.Fatalf("Split(%q) = %q %q %q", d, scope, action, payload)
	}
	if len(d) > MaxCallbackDataLen {
		t.Fatalf("callback data too long: %d", len(d))
	}
}
