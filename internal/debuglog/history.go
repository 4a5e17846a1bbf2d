package debuglog

import (
	"context"
	"errors"
	"sync"
)

// DefaultHistorySize is the number of logs retained when no size is configured.
const DefaultHistorySize = 100

// ErrLogNotFound is returned when no retained log has the requested ID.
var ErrLogNotFound = errors.New("debug log not found")

// HistoryStore retains the most recent logs for later inspection.
type HistoryStore interface {
	Recorder
	// Recent returns up to limit logs, newest first. limit <= 0 returns all.
	Recent(ctx context.Context, limit int) ([]*CopilotDebugLog, error)
	Get(ctx context.Context, id string) (*CopilotDebugLog, error)
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// History is an in-memory HistoryStore bounded to a fixed number of logs.
type History struct {
	mu      sync.Mutex
	max     int
	entries []*CopilotDebugLog // oldest first
}

// NewHistory keeps the newest max entries, or DefaultHistorySize when max <= 0.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max, entries: make([]*CopilotDebugLog, 0, max)}
}

// Record appends the log, then evicts the oldest logs past capacity.
func (h *History) Record(entry *CopilotDebugLog) {
	if entry == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if over := len(h.entries) - h.max; over > 0 {
		clear(h.entries[:over])
		h.entries = append(h.entries[:0], h.entries[over:]...)
	}
}

func (h *History) Recent(_ context.Context, limit int) ([]*CopilotDebugLog, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*CopilotDebugLog, 0, n)
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}

func (h *History) Get(_ context.Context, id string) (*CopilotDebugLog, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].ID == id {
			return h.entries[i], nil
		}
	}
	return nil, ErrLogNotFound
}

func (h *History) Clear(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.entries)
	h.entries = h.entries[:0]
	return nil
}

func (h *History) Len(_ context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries), nil
}

// Cap returns the configured capacity.
func (h *History) Cap() int { return h.max }
