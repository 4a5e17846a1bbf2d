package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/devlog_agent/internal/controller"
	"github.com/dgnsrekt/devlog_agent/internal/debuglog"
	"github.com/dgnsrekt/devlog_agent/internal/metrics"
	"github.com/dgnsrekt/devlog_agent/internal/relay"
)

const framePayload = `{"type":2,"item":{"messages":[` +
	`{"messageType":"DeveloperLogs","text":"{\"functionDisplayName\":\"Lookup\",\"enabledPlugins\":[]}","createdAt":"2024-05-01T10:00:00Z"},` +
	`{"messageType":"Text","text":"hello","createdAt":"2024-05-01T10:00:01Z"}` +
	`]}}` + "\x1e"

func newTestServer(t *testing.T) (http.Handler, *relay.Broker) {
	t.Helper()
	history := debuglog.NewHistory(10)
	broker := relay.NewBroker()
	handler := debuglog.NewHandler(nil, nil, nil, debuglog.Recorders{history, broker})
	svc := controller.NewService(handler, history, nil, nil)

	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	return NewServer(svc, Options{Broker: broker, Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}), broker
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDebugLogLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/frames", map[string]any{"opcode": 1, "payload_data": framePayload})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /frames status = %d body = %s", w.Code, w.Body.String())
	}
	var decoded controller.DecodeResult
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !decoded.Relevant || decoded.Emitted != 1 {
		t.Fatalf("decode result = %+v; want one emitted log", decoded)
	}

	w = do(t, h, http.MethodGet, "/api/v1/debug-logs?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /debug-logs status = %d", w.Code)
	}
	var list struct {
		Count int                        `json:"count"`
		Logs  []debuglog.CopilotDebugLog `json:"logs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("list result: %v", err)
	}
	if list.Count != 1 || list.Logs[0].FunctionDisplayName != "Lookup" || list.Logs[0].CreatedAt != "2024-05-01T10:00:00Z" {
		t.Fatalf("list = %+v", list)
	}

	id := list.Logs[0].ID
	if w = do(t, h, http.MethodGet, "/api/v1/debug-logs/"+id, nil); w.Code != http.StatusOK {
		t.Fatalf("GET /debug-logs/{id} status = %d", w.Code)
	}

	if w = do(t, h, http.MethodDelete, "/api/v1/debug-logs", nil); w.Code != http.StatusOK {
		t.Fatalf("DELETE /debug-logs status = %d", w.Code)
	}
	if w = do(t, h, http.MethodGet, "/api/v1/debug-logs/"+id, nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET cleared log status = %d; want 404", w.Code)
	}

	w = do(t, h, http.MethodGet, "/api/v1/health", nil)
	var health controller.HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil || health.Status != "ok" || health.HistorySize != 0 {
		t.Fatalf("health = %+v, %v", health, err)
	}
}

func TestDecodeFrameRejectsBadOpcode(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/frames", map[string]any{"opcode": 99, "payload_data": "{}"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestListRejectsNegativeLimit(t *testing.T) {
	h, _ := newTestServer(t)
	if w := do(t, h, http.MethodGet, "/api/v1/debug-logs?limit=-1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t)
	do(t, h, http.MethodPost, "/api/v1/frames", map[string]any{"opcode": 1, "payload_data": framePayload})

	w := do(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "devlog_entries_emitted_total") {
		t.Fatalf("metrics output missing devlog_entries_emitted_total")
	}
}

func TestSSEStreamThroughMiddleware(t *testing.T) {
	h, broker := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stream/sse?format=json")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for broker.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if w := do(t, h, http.MethodPost, "/api/v1/frames", map[string]any{"opcode": 1, "payload_data": framePayload}); w.Code != http.StatusOK {
		t.Fatalf("POST /frames status = %d", w.Code)
	}

	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			if !strings.Contains(line, `"function_display_name":"Lookup"`) {
				t.Fatalf("stream data = %q", line)
			}
			return
		}
	}
}
