package debuglog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestWriterOutputAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriterOutput(&buf)
	out.AppendLine("{\n  \"a\": 1\n}")
	out.AppendLine("second")
	if got, want := buf.String(), "{\n  \"a\": 1\n}\nsecond\n"; got != want {
		t.Fatalf("output = %q; want %q", got, want)
	}
}

func TestRecordersSkipsNil(t *testing.T) {
	a, b := NewHistory(2), NewHistory(2)
	Recorders{a, nil, b}.Record(entryNamed("x"))
	for i, h := range []*History{a, b} {
		if n, _ := h.Len(testContext(t)); n != 1 {
			t.Fatalf("recorder %d len = %d; want 1", i, n)
		}
	}
}

func TestSlogConsoleWarn(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	h := NewHandler(nil, nil, nil, nil)
	h.HandleEvent(textFrame(`{"type":2,"item":{}}`))

	if !strings.Contains(buf.String(), "Parsed response object does not contain item or messages:") {
		t.Fatalf("expected shape warning in log, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("expected warn level, got %q", buf.String())
	}
}
