package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const sendTimeout = 10 * time.Second

// Notifier surfaces decoder errors to a human. Every message is logged at
// error level; when an endpoint is configured it is also pushed to ntfy.
type Notifier struct {
	endpoint string
	client   *http.Client

	wg sync.WaitGroup
}

// New returns a Notifier. An empty endpoint only logs.
func New(endpoint string, client *http.Client) *Notifier {
	return &Notifier{endpoint: strings.TrimSpace(endpoint), client: client}
}

// ShowError implements debuglog.Notifier. It never blocks on the network.
func (n *Notifier) ShowError(message string) {
	slog.Error("debug log error", "message", message)
	if n.endpoint == "" {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := Send(ctx, n.client, n.endpoint, message); err != nil {
			slog.Warn("ntfy notification failed", "endpoint", n.endpoint, "error", err)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Send posts message as text/plain to endpoint.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	if endpoint == "" {
		return fmt.Errorf("ntfy notification failed: endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", "devlog agent")
	req.Header.Set("Priority", "high")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
