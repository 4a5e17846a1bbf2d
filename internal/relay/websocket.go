package relay

import (
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/devlog_agent/internal/metrics"
)

// WSHandler streams decoded entries over a WebSocket, one text message per
// entry. Messages from the client are read and discarded; the stream ends
// when the client closes the connection.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := parseFormat(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("relay: websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)
		metrics.StreamClientConnected("ws")
		defer metrics.StreamClientDisconnected("ws")

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-done:
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
				if err := wsutil.WriteServerText(conn, []byte(payload)); err != nil {
					slog.Debug("relay: websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
