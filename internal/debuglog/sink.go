package debuglog

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Notifier is the human-facing error channel.
type Notifier interface {
	ShowError(message string)
}

// Console receives shape diagnostics for envelopes that cannot be processed.
type Console interface {
	Warn(message string, envelope any)
}

// Output is the display channel; it receives one line per converted log.
type Output interface {
	AppendLine(text string)
}

// Recorder receives every converted log after it has been written to the Output.
type Recorder interface {
	Record(entry *CopilotDebugLog)
}

// Recorders fans a log out to several recorders in order.
type Recorders []Recorder

func (rs Recorders) Record(entry *CopilotDebugLog) {
	for _, r := range rs {
		if r != nil {
			r.Record(entry)
		}
	}
}

// SlogConsole reports diagnostics through the default slog logger.
type SlogConsole struct{}

func (SlogConsole) Warn(message string, envelope any) {
	if raw, ok := envelope.(json.RawMessage); ok {
		envelope = string(raw)
	}
	slog.Warn(message, "envelope", envelope)
}

// SlogNotifier logs errors when no interactive channel is available.
type SlogNotifier struct{}

func (SlogNotifier) ShowError(message string) {
	slog.Error("debug log error", "message", message)
}

// WriterOutput writes each line to an io.Writer followed by a newline.
type WriterOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterOutput writes each line to w followed by a newline.
func NewWriterOutput(w io.Writer) *WriterOutput {
	return &WriterOutput{w: w}
}

func (o *WriterOutput) AppendLine(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := fmt.Fprintln(o.w, text); err != nil {
		slog.Debug("debug log output write failed", "error", err)
	}
}
