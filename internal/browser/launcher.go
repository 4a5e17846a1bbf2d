package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"
)

const (
	cdpReadyTimeout = 15 * time.Second
	stopGrace       = 5 * time.Second
)

// Config describes the Chromium instance the agent may start.
type Config struct {
	CDPAddress string
	CDPPort    int
	BinaryPath string // empty means auto-detect
	StartURL   string // the chat page whose bot socket gets tapped
	ProfileDir string
	Headless   bool
}

// Launcher starts Chromium with remote debugging when nothing is listening on
// the CDP port yet, and stops it again on shutdown.
type Launcher struct {
	cfg Config
	cmd *exec.Cmd
}

func NewLauncher(cfg Config) *Launcher {
	return &Launcher{cfg: cfg}
}

var browserCandidates = []string{"chromium-browser", "chromium", "google-chrome", "microsoft-edge"}

func (l *Launcher) binary() (string, error) {
	if l.cfg.BinaryPath != "" {
		return exec.LookPath(l.cfg.BinaryPath)
	}
	for _, name := range browserCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried %v)", browserCandidates)
}

func (l *Launcher) args() []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(l.cfg.CDPPort),
		"--remote-debugging-address=" + l.cfg.CDPAddress,
		"--user-data-dir=" + l.cfg.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
	}
	if l.cfg.Headless {
		args = append(args, "--headless=new")
	}
	if l.cfg.StartURL != "" {
		args = append(args, l.cfg.StartURL)
	}
	return args
}

func (l *Launcher) cdpHostPort() string {
	return net.JoinHostPort(l.cfg.CDPAddress, strconv.Itoa(l.cfg.CDPPort))
}

// Launch starts the browser and waits for its CDP endpoint. It is a no-op
// when a browser already serves the CDP port.
func (l *Launcher) Launch(ctx context.Context) error {
	if conn, err := net.DialTimeout("tcp", l.cdpHostPort(), time.Second); err == nil {
		_ = conn.Close()
		slog.Info("Browser already running, skipping launch", "cdp", l.cdpHostPort())
		return nil
	}

	path, err := l.binary()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	l.cmd = exec.Command(path, l.args()...)
	l.cmd.Stderr = os.Stderr
	if err := l.cmd.Start(); err != nil {
		l.cmd = nil
		return fmt.Errorf("start browser: %w", err)
	}
	slog.Info("Browser started", "path", path, "pid", l.cmd.Process.Pid, "start_url", l.cfg.StartURL)

	if err := waitForCDP(ctx, "http://"+l.cdpHostPort()+"/json/version", cdpReadyTimeout); err != nil {
		l.Stop()
		return err
	}
	slog.Info("CDP endpoint ready", "cdp", l.cdpHostPort())
	return nil
}

// waitForCDP polls url until it answers 200 or timeout elapses.
func waitForCDP(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	client := &http.Client{Timeout: time.Second}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("CDP not ready at %s: %w", url, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Started reports whether this launcher owns a browser process.
func (l *Launcher) Started() bool {
	return l.cmd != nil
}

// Stop sends SIGTERM to a browser this launcher started, then SIGKILL after a
// grace period.
func (l *Launcher) Stop() {
	if l.cmd == nil || l.cmd.Process == nil {
		return
	}
	cmd := l.cmd
	l.cmd = nil

	slog.Info("Stopping browser", "pid", cmd.Process.Pid)
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGrace):
		slog.Warn("Browser did not exit, killing", "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-done
	}
}
