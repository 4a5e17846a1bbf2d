package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/devlog_agent/internal/controller"
	"github.com/dgnsrekt/devlog_agent/internal/debuglog"
	"github.com/dgnsrekt/devlog_agent/internal/relay"
)

type Service interface {
	RecentLogs(ctx context.Context, limit int) ([]*debuglog.CopilotDebugLog, error)
	GetLog(ctx context.Context, id string) (*debuglog.CopilotDebugLog, error)
	ClearLogs(ctx context.Context) error
	DecodeFrame(ctx context.Context, opcode int, payload string) (controller.DecodeResult, error)
	Health(ctx context.Context) (controller.HealthStatus, error)
}

// Options carries the optional non-REST surfaces mounted next to the API.
type Options struct {
	Broker  *relay.Broker // live streams; nil disables /api/v1/stream/*
	Metrics http.Handler  // nil disables /metrics
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type healthOutput struct {
	Body controller.HealthStatus
}

type listLogsInput struct {
	Limit int `query:"limit" default:"50" doc:"Maximum number of logs, newest first. 0 returns the whole history."`
}

type listLogsOutput struct {
	Body struct {
		Count int                         `json:"count"`
		Logs  []*debuglog.CopilotDebugLog `json:"logs"`
	}
}

type logIDInput struct {
	ID string `path:"id" doc:"Debug log ID"`
}

type logOutput struct {
	Body *debuglog.CopilotDebugLog
}

type decodeFrameInput struct {
	Body struct {
		Opcode      int    `json:"opcode" doc:"WebSocket opcode; only 1 (text) frames are decoded"`
		PayloadData string `json:"payload_data" doc:"Raw frame payload"`
	}
}

type decodeFrameOutput struct {
	Body controller.DecodeResult
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Devlog Agent API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, docsHTML)
	})
	router.Get("/docs/stream", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, streamDocsHTML)
	})

	if opts.Broker != nil {
		router.Get("/api/v1/stream/sse", relay.SSEHandler(opts.Broker))
		router.Get("/api/v1/stream/ws", relay.WSHandler(opts.Broker))
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}

	registerHealthHandlers(api, svc)
	registerLogHandlers(api, svc)

	return router
}

func writeHTML(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write([]byte(page)); err != nil {
		slog.Debug("docs response write failed", "error", err)
	}
}

func registerHealthHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Liveness check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			out := &statusOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "health-detail", Method: http.MethodGet, Path: "/api/v1/health", Summary: "History size, open sockets and attached tabs", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			status, err := svc.Health(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &healthOutput{Body: status}, nil
		})
}

func registerLogHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "list-debug-logs", Method: http.MethodGet, Path: "/api/v1/debug-logs", Summary: "List recent debug logs", Tags: []string{"Debug Logs"}},
		func(ctx context.Context, input *listLogsInput) (*listLogsOutput, error) {
			if input.Limit < 0 {
				return nil, huma.Error400BadRequest("limit must be >= 0")
			}
			logs, err := svc.RecentLogs(ctx, input.Limit)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listLogsOutput{}
			out.Body.Logs = logs
			out.Body.Count = len(logs)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-debug-log", Method: http.MethodGet, Path: "/api/v1/debug-logs/{id}", Summary: "Get one debug log", Tags: []string{"Debug Logs"}},
		func(ctx context.Context, input *logIDInput) (*logOutput, error) {
			entry, err := svc.GetLog(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &logOutput{Body: entry}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-debug-logs", Method: http.MethodDelete, Path: "/api/v1/debug-logs", Summary: "Clear the debug log history", Tags: []string{"Debug Logs"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.ClearLogs(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "cleared"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "decode-frame", Method: http.MethodPost, Path: "/api/v1/frames", Summary: "Decode a WebSocket frame as if it were captured", Tags: []string{"Frames"}},
		func(ctx context.Context, input *decodeFrameInput) (*decodeFrameOutput, error) {
			result, err := svc.DecodeFrame(ctx, input.Body.Opcode, input.Body.PayloadData)
			if err != nil {
				return nil, mapErr(err)
			}
			return &decodeFrameOutput{Body: result}, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *controller.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case controller.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case controller.CodeLogNotFound:
			return huma.Error404NotFound(coded.Message)
		case controller.CodeHistoryUnavailable:
			return huma.Error503ServiceUnavailable(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
