package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/devlog_agent/internal/api"
	"github.com/dgnsrekt/devlog_agent/internal/browser"
	"github.com/dgnsrekt/devlog_agent/internal/capture"
	"github.com/dgnsrekt/devlog_agent/internal/cdp"
	"github.com/dgnsrekt/devlog_agent/internal/config"
	"github.com/dgnsrekt/devlog_agent/internal/controller"
	"github.com/dgnsrekt/devlog_agent/internal/debuglog"
	"github.com/dgnsrekt/devlog_agent/internal/metrics"
	"github.com/dgnsrekt/devlog_agent/internal/netutil"
	"github.com/dgnsrekt/devlog_agent/internal/notify"
	"github.com/dgnsrekt/devlog_agent/internal/relay"
	"github.com/dgnsrekt/devlog_agent/internal/storage"
)

const (
	bindFallbackPorts = 5
	tabPollInterval   = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("devlog agent config loaded",
		"cdp_url", cfg.GetCDPURL(),
		"tab_url_filter", cfg.TabURLFilter,
		"tap_config", cfg.TapConfigPath,
		"bind_addr", cfg.BindAddr,
		"history_size", cfg.HistorySize,
		"redis", cfg.RedisURL != "",
		"ntfy", cfg.NTFYEndpoint != "",
		"data_dir", cfg.DataDir,
		"archive_frames", cfg.ArchiveFrames,
		"archive_entries", cfg.ArchiveEntries,
	)

	taps, err := config.LoadTapConfig(cfg.TapConfigPath)
	if err != nil {
		slog.Error("failed to load tap config", "path", cfg.TapConfigPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	history, closeHistory, err := openHistory(ctx, cfg)
	if err != nil {
		slog.Error("failed to open history", "error", err)
		os.Exit(1)
	}
	defer closeHistory()

	var archive *storage.WriterRegistry
	if cfg.ArchiveFrames || cfg.ArchiveEntries {
		archive = storage.NewWriterRegistry(cfg.DataDir, cfg.BufferSize, cfg.MaxFileSizeMB)
		defer func() {
			if err := archive.Close(); err != nil {
				slog.Error("failed to close archives", "error", err)
			}
		}()
	}

	broker := relay.NewBroker()
	recorders := debuglog.Recorders{history, broker}
	if cfg.ArchiveEntries {
		recorders = append(recorders, archive.GetWriter("all", "entries", "devlog"))
	}

	notifier := notify.New(cfg.NTFYEndpoint, &http.Client{Timeout: 10 * time.Second})
	defer notifier.Wait()

	handler := debuglog.NewHandler(debuglog.NewWriterOutput(os.Stdout), notifier, debuglog.SlogConsole{}, recorders)

	frameArchive := archive
	if !cfg.ArchiveFrames {
		frameArchive = nil
	}
	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			BinaryPath: cfg.BrowserPath,
			StartURL:   cfg.StartURL,
			ProfileDir: cfg.ProfileDir,
			Headless:   cfg.Headless,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	tabRegistry := cdp.NewTabRegistry()
	wsTap := capture.NewWebSocketTap(taps, handler, tabRegistry, frameArchive, cfg.MaxFrameBytes)

	cdpClient := cdp.NewClient(cfg.GetCDPURL(), cfg.TabURLFilter, cfg.ReloadOnAttach, wsTap, tabRegistry)
	if err := cdpClient.Connect(ctx); err != nil {
		slog.Error("failed to connect to browser", "cdp_url", cfg.GetCDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() { _ = cdpClient.Close() }()
	go cdpClient.Watch(ctx, tabPollInterval)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	svc := controller.NewService(handler, history, wsTap, tabRegistry)
	h := api.NewServer(svc, api.Options{
		Broker:  broker,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	candidates, err := netutil.NextPorts(cfg.BindAddr, bindFallbackPorts)
	if err != nil {
		slog.Error("invalid bind address", "bind_addr", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, candidates, true)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	srv := &http.Server{Addr: bindAddr, Handler: h}
	go func() {
		slog.Info("devlog agent listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down", "attached_tabs", cdpClient.TabCount(), "open_sockets", wsTap.ActiveConnections())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
}

// openHistory returns the Redis history when DEVLOG_REDIS_URL is set and the
// in-memory history otherwise.
func openHistory(ctx context.Context, cfg *config.Config) (debuglog.HistoryStore, func(), error) {
	if cfg.RedisURL == "" {
		return debuglog.NewHistory(cfg.HistorySize), func() {}, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	h, err := storage.NewRedisHistory(pingCtx, cfg.RedisURL, cfg.HistorySize)
	if err != nil {
		return nil, nil, err
	}
	return h, func() { _ = h.Close() }, nil
}

// setupLogger writes logs to stderr and a rotating file. Stdout carries the
// decoded debug logs.
func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stderr, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
