package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/dgnsrekt/devlog_agent/internal/debuglog"
	"github.com/dgnsrekt/devlog_agent/internal/types"
)

const maxOpcode = 15

// FrameDecoder runs the debug log pipeline over one frame.
type FrameDecoder interface {
	Decode(frame *network.WebSocketFrame) debuglog.FrameReport
}

// ConnectionCounter reports the tapped WebSocket connections still open.
type ConnectionCounter interface {
	ActiveConnections() int
}

// TabLister reports the browser tabs currently attached.
type TabLister interface {
	List() []types.TabInfo
}

// DecodeResult summarizes a frame submitted through the API.
type DecodeResult struct {
	Relevant           bool     `json:"relevant"`
	Fragments          int      `json:"fragments"`
	Emitted            int      `json:"emitted"`
	ShapeMismatches    int      `json:"shape_mismatches"`
	FragmentErrors     []string `json:"fragment_errors"`
	ConversionFailures []string `json:"conversion_failures"`
}

type HealthStatus struct {
	Status            string          `json:"status"`
	HistorySize       int             `json:"history_size"`
	ActiveConnections int             `json:"active_connections"`
	AttachedTabs      int             `json:"attached_tabs"`
	Tabs              []types.TabInfo `json:"tabs"`
	StartedAt         time.Time       `json:"started_at"`
}

// Service exposes decoded debug logs and the decoder itself to the API.
type Service struct {
	decoder FrameDecoder
	history debuglog.HistoryStore
	conns   ConnectionCounter
	tabs    TabLister
	started time.Time
}

// NewService builds a Service. conns and tabs may be nil when no browser is
// attached, e.g. in replay mode.
func NewService(decoder FrameDecoder, history debuglog.HistoryStore, conns ConnectionCounter, tabs TabLister) *Service {
	return &Service{
		decoder: decoder,
		history: history,
		conns:   conns,
		tabs:    tabs,
		started: time.Now().UTC(),
	}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return newError(CodeValidation, fieldName+" is required", nil)
	}
	return nil
}

// RecentLogs returns up to limit logs, most recent first. limit <= 0 returns
// the whole history.
func (s *Service) RecentLogs(ctx context.Context, limit int) ([]*debuglog.CopilotDebugLog, error) {
	entries, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, newError(CodeHistoryUnavailable, "failed to read history", err)
	}
	return entries, nil
}

func (s *Service) GetLog(ctx context.Context, id string) (*debuglog.CopilotDebugLog, error) {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return nil, err
	}
	entry, err := s.history.Get(ctx, strings.TrimSpace(id))
	if errors.Is(err, debuglog.ErrLogNotFound) {
		return nil, newError(CodeLogNotFound, fmt.Sprintf("debug log %q not found", id), nil)
	}
	if err != nil {
		return nil, newError(CodeHistoryUnavailable, "failed to read history", err)
	}
	return entry, nil
}

func (s *Service) ClearLogs(ctx context.Context) error {
	if err := s.history.Clear(ctx); err != nil {
		return newError(CodeHistoryUnavailable, "failed to clear history", err)
	}
	return nil
}

// DecodeFrame feeds a frame through the same pipeline as captured traffic.
// Emitted logs land in the history and on the live streams.
func (s *Service) DecodeFrame(ctx context.Context, opcode int, payload string) (DecodeResult, error) {
	if opcode < 0 || opcode > maxOpcode {
		return DecodeResult{}, newError(CodeValidation, fmt.Sprintf("opcode %d out of range (0-%d)", opcode, maxOpcode), nil)
	}
	if err := ctx.Err(); err != nil {
		return DecodeResult{}, err
	}

	rep := s.decoder.Decode(&network.WebSocketFrame{Opcode: float64(opcode), PayloadData: payload})

	out := DecodeResult{
		Relevant:           rep.Relevant,
		Fragments:          rep.Fragments,
		Emitted:            rep.Emitted,
		ShapeMismatches:    rep.ShapeMismatches,
		FragmentErrors:     make([]string, 0, len(rep.FragmentErrors)),
		ConversionFailures: make([]string, 0, len(rep.ConversionFailures)),
	}
	for _, err := range rep.FragmentErrors {
		out.FragmentErrors = append(out.FragmentErrors, err.Error())
	}
	for _, f := range rep.ConversionFailures {
		out.ConversionFailures = append(out.ConversionFailures, f.Text)
	}
	return out, nil
}

func (s *Service) Health(ctx context.Context) (HealthStatus, error) {
	n, err := s.history.Len(ctx)
	if err != nil {
		return HealthStatus{}, newError(CodeHistoryUnavailable, "failed to read history", err)
	}
	out := HealthStatus{Status: "ok", HistorySize: n, Tabs: []types.TabInfo{}, StartedAt: s.started}
	if s.conns != nil {
		out.ActiveConnections = s.conns.ActiveConnections()
	}
	if s.tabs != nil {
		out.Tabs = s.tabs.List()
		out.AttachedTabs = len(out.Tabs)
	}
	return out, nil
}
