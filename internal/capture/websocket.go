package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/dgnsrekt/devlog_agent/internal/config"
	"github.com/dgnsrekt/devlog_agent/internal/storage"
	"github.com/dgnsrekt/devlog_agent/internal/types"
)

// FrameHandler decodes one captured frame and returns the number of logs it
// produced.
type FrameHandler interface {
	HandleEvent(frame *network.WebSocketFrame) int
}

// WebSocketTap feeds frames from tapped WebSocket connections to a FrameHandler.
type WebSocketTap struct {
	taps          *config.TapConfig
	handler       FrameHandler
	tabRegistry   types.TabInfoProvider
	archive       *storage.WriterRegistry // nil disables raw frame archiving
	maxFrameBytes int

	connections   map[string]*types.WebSocketConnection
	connectionsMu sync.RWMutex
}

func NewWebSocketTap(taps *config.TapConfig, handler FrameHandler, tabRegistry types.TabInfoProvider, archive *storage.WriterRegistry, maxFrameBytes int) *WebSocketTap {
	if taps == nil {
		taps = config.DefaultTapConfig()
	}
	return &WebSocketTap{
		taps:          taps,
		handler:       handler,
		tabRegistry:   tabRegistry,
		archive:       archive,
		maxFrameBytes: maxFrameBytes,
		connections:   make(map[string]*types.WebSocketConnection),
	}
}

func (w *WebSocketTap) OnWebSocketCreated(tabID string, ev *network.EventWebSocketCreated) {
	tap, ok := w.taps.Match(ev.URL)
	if !ok {
		slog.Debug("WebSocket not tapped", "tab_id", tabID, "url", ev.URL)
		return
	}

	pathSegment, browserID := "unknown", "unknown"
	if w.tabRegistry != nil {
		if info, ok := w.tabRegistry.GetByStringID(tabID); ok {
			pathSegment = info.PathSegment
			browserID = info.BrowserID
		}
	}

	conn := &types.WebSocketConnection{
		RequestID:   string(ev.RequestID),
		URL:         ev.URL,
		TabID:       tabID,
		Tap:         tap.Name,
		PathSegment: pathSegment,
		BrowserID:   browserID,
		CreatedAt:   time.Now().UTC(),
	}

	w.connectionsMu.Lock()
	w.connections[conn.RequestID] = conn
	w.connectionsMu.Unlock()

	slog.Info("WebSocket tapped", "tap", tap.Name, "request_id", ev.RequestID, "url", ev.URL)
	w.archiveEvent(conn, &types.WebSocketCapture{EventType: "created"})
}

func (w *WebSocketTap) OnWebSocketFrameReceived(tabID string, ev *network.EventWebSocketFrameReceived) {
	w.connectionsMu.RLock()
	conn, ok := w.connections[string(ev.RequestID)]
	w.connectionsMu.RUnlock()
	if !ok || ev.Response == nil {
		return
	}

	emitted := w.handler.HandleEvent(ev.Response)
	if emitted > 0 {
		slog.Debug("Debug logs decoded", "tap", conn.Tap, "request_id", ev.RequestID, "count", emitted)
	}

	if w.archive == nil {
		return
	}
	payload, truncated, originalSize, payloadHash := truncatePayload(ev.Response.PayloadData, w.maxFrameBytes)
	w.archiveEvent(conn, &types.WebSocketCapture{
		EventType:    "frame_received",
		Direction:    "incoming",
		Opcode:       int(ev.Response.Opcode),
		PayloadData:  payload,
		Truncated:    truncated,
		OriginalSize: originalSize,
		SHA256:       payloadHash,
		Emitted:      emitted,
	})
}

func (w *WebSocketTap) OnWebSocketClosed(tabID string, ev *network.EventWebSocketClosed) {
	w.connectionsMu.Lock()
	conn, ok := w.connections[string(ev.RequestID)]
	if ok {
		delete(w.connections, string(ev.RequestID))
	}
	w.connectionsMu.Unlock()
	if !ok {
		return
	}

	slog.Info("WebSocket closed", "tap", conn.Tap, "request_id", ev.RequestID)
	w.archiveEvent(conn, &types.WebSocketCapture{EventType: "closed"})
}

// ActiveConnections returns the number of tapped connections still open.
func (w *WebSocketTap) ActiveConnections() int {
	w.connectionsMu.RLock()
	defer w.connectionsMu.RUnlock()
	return len(w.connections)
}

func (w *WebSocketTap) archiveEvent(conn *types.WebSocketConnection, rec *types.WebSocketCapture) {
	if w.archive == nil {
		return
	}
	rec.Timestamp = time.Now().UTC()
	rec.RequestID = conn.RequestID
	rec.TabID = conn.TabID
	rec.Tap = conn.Tap
	rec.URL = conn.URL

	writer := w.archive.GetWriter(conn.PathSegment, "frames", conn.BrowserID)
	if err := writer.Write(rec); err != nil {
		slog.Error("Failed to archive WebSocket event", "event", rec.EventType, "request_id", conn.RequestID, "error", err)
	}
}
