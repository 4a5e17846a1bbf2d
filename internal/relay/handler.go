package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dgnsrekt/devlog_agent/internal/metrics"
)

const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

func parseFormat(r *http.Request) (string, error) {
	switch f := r.URL.Query().Get("format"); f {
	case "", FormatPretty:
		return FormatPretty, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want %s or %s)", f, FormatPretty, FormatJSON)
	}
}

// encodeEvent renders evt the way clients asked for it: the indented debug
// entry for "pretty", or the full entry with metadata for "json".
func encodeEvent(evt Event, format string) (string, error) {
	if format == FormatPretty {
		return evt.Entry.Pretty()
	}
	data, err := json.Marshal(evt.Entry)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// writeSSE writes one event, splitting multi-line payloads into data lines.
func writeSSE(w io.Writer, evt Event, payload string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\nevent: %s\n", evt.Entry.ID, evt.Name)
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// SSEHandler streams decoded entries as server-sent events.
// Clients pick the payload shape with ?format=pretty|json.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		format, err := parseFormat(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)
		metrics.StreamClientConnected("sse")
		defer metrics.StreamClientDisconnected("sse")

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				payload, err := encodeEvent(evt, format)
				if err != nil {
					slog.Warn("relay: encode event", "id", evt.Entry.ID, "error", err)
					continue
				}
				if err := writeSSE(w, evt, payload); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
