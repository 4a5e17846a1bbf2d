package storage

import (
	"log/slog"
	"path/filepath"
	"sync"
)

// WriterRegistry hands out one JSONLWriter per path segment and stream, so each
// tab's archives land in their own directory.
type WriterRegistry struct {
	baseDir    string
	maxSizeMB  int
	bufferSize int

	// writers maps "pathSegment/stream" -> writer
	writers map[string]*JSONLWriter
	mu      sync.Mutex
}

func NewWriterRegistry(baseDir string, bufferSize int, maxSizeMB int) *WriterRegistry {
	return &WriterRegistry{
		baseDir:    baseDir,
		maxSizeMB:  maxSizeMB,
		bufferSize: bufferSize,
		writers:    make(map[string]*JSONLWriter),
	}
}

// GetWriter returns (or creates) the writer for pathSegment and stream
// ("frames" or "entries"). browserID names the file.
func (r *WriterRegistry) GetWriter(pathSegment, stream, browserID string) *JSONLWriter {
	subDir := filepath.Join(pathSegment, stream)

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.writers[subDir]; ok {
		return w
	}

	w := NewJSONLWriter(r.baseDir, subDir, browserID, r.bufferSize, r.maxSizeMB)
	r.writers[subDir] = w
	slog.Info("Created new JSONL writer", "path_segment", pathSegment, "stream", stream, "browser_id", browserID)
	return w
}

// Close closes all managed writers.
func (r *WriterRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for subDir, w := range r.writers {
		if err := w.Close(); err != nil {
			slog.Error("Failed to close writer", "subdir", subDir, "error", err)
			lastErr = err
		}
	}
	r.writers = make(map[string]*JSONLWriter)
	return lastErr
}
