package capture

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/dgnsrekt/devlog_agent/internal/config"
	"github.com/dgnsrekt/devlog_agent/internal/storage"
	"github.com/dgnsrekt/devlog_agent/internal/types"
)

type countingHandler struct {
	frames []*network.WebSocketFrame
	emit   int
}

func (h *countingHandler) HandleEvent(frame *network.WebSocketFrame) int {
	h.frames = append(h.frames, frame)
	return h.emit
}

type staticTabs map[string]*types.TabInfo

func (s staticTabs) GetByStringID(tabID string) (*types.TabInfo, bool) {
	info, ok := s[tabID]
	return info, ok
}

func botTaps() *config.TapConfig {
	return &config.TapConfig{Taps: []config.Tap{{Name: "bot", URLPattern: "botframework.com"}}}
}

func TestWebSocketTapRoutesOnlyTappedConnections(t *testing.T) {
	h := &countingHandler{emit: 1}
	tap := NewWebSocketTap(botTaps(), h, nil, nil, 0)

	tap.OnWebSocketCreated("tab-1", &network.EventWebSocketCreated{RequestID: "bot", URL: "wss://directline.botframework.com/stream"})
	tap.OnWebSocketCreated("tab-1", &network.EventWebSocketCreated{RequestID: "other", URL: "wss://telemetry.example.com"})

	if got := tap.ActiveConnections(); got != 1 {
		t.Fatalf("ActiveConnections() = %d; want 1", got)
	}

	frame := &network.WebSocketFrame{Opcode: 1, PayloadData: `{"type":2}`}
	tap.OnWebSocketFrameReceived("tab-1", &network.EventWebSocketFrameReceived{RequestID: "bot", Response: frame})
	tap.OnWebSocketFrameReceived("tab-1", &network.EventWebSocketFrameReceived{RequestID: "other", Response: frame})
	tap.OnWebSocketFrameReceived("tab-1", &network.EventWebSocketFrameReceived{RequestID: "bot"})

	if len(h.frames) != 1 || h.frames[0] != frame {
		t.Fatalf("handler frames = %d; want only the tapped frame", len(h.frames))
	}

	tap.OnWebSocketClosed("tab-1", &network.EventWebSocketClosed{RequestID: "bot"})
	tap.OnWebSocketFrameReceived("tab-1", &network.EventWebSocketFrameReceived{RequestID: "bot", Response: frame})
	if tap.ActiveConnections() != 0 || len(h.frames) != 1 {
		t.Fatalf("frames after close = %d, active = %d", len(h.frames), tap.ActiveConnections())
	}
}

func TestWebSocketTapArchivesFrames(t *testing.T) {
	dir := t.TempDir()
	archive := storage.NewWriterRegistry(dir, 16, 1)
	tabs := staticTabs{"tab-1": {TargetID: "B0D5A8E8FFFF", PathSegment: "chat", BrowserID: "B0D5A8E8"}}
	tap := NewWebSocketTap(nil, &countingHandler{emit: 2}, tabs, archive, 4)

	tap.OnWebSocketCreated("tab-1", &network.EventWebSocketCreated{RequestID: "r1", URL: "wss://bot.example"})
	tap.OnWebSocketFrameReceived("tab-1", &network.EventWebSocketFrameReceived{
		RequestID: "r1",
		Response:  &network.WebSocketFrame{Opcode: 1, PayloadData: "payload-too-long"},
	})
	tap.OnWebSocketClosed("tab-1", &network.EventWebSocketClosed{RequestID: "r1"})

	if err := archive.Close(); err != nil {
		t.Fatalf("archive.Close() error = %v", err)
	}

	date := time.Now().UTC().Format("2006-01-02")
	f, err := os.Open(filepath.Join(dir, date, "chat", "frames", "B0D5A8E8.jsonl"))
	if err != nil {
		t.Fatalf("os.Open() failed: %v", err)
	}
	defer f.Close()

	var recs []types.WebSocketCapture
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec types.WebSocketCapture
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		recs = append(recs, rec)
	}

	if len(recs) != 3 {
		t.Fatalf("archived records = %d; want 3", len(recs))
	}
	frame := recs[1]
	if frame.EventType != "frame_received" || frame.PayloadData != "payl" || !frame.Truncated || frame.Emitted != 2 {
		t.Fatalf("archived frame = %+v", frame)
	}
	if frame.Tap != "all" || frame.TabID != "tab-1" {
		t.Fatalf("archived frame routing = tap %q tab %q", frame.Tap, frame.TabID)
	}
}
