package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/devlog_agent/internal/debuglog"
	"github.com/redis/go-redis/v9"
)

const (
	defaultHistoryKey = "devlog:history"
	recordTimeout     = 2 * time.Second
	recordQueueSize   = 256
)

var _ debuglog.HistoryStore = (*RedisHistory)(nil)

// RedisHistory is a debuglog.HistoryStore kept in a Redis list, newest at the
// head, so several agents and UIs can share one history. Record only queues
// the entry; a background goroutine pushes it to Redis.
type RedisHistory struct {
	client redis.UniversalClient
	key    string
	max    int

	queue   chan []byte
	done    chan struct{}
	wg      sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRedisHistory connects to addr, either "host:port" or a redis:// URL,
// and verifies the connection.
func NewRedisHistory(ctx context.Context, addr string, max int) (*RedisHistory, error) {
	client, err := newRedisClient(addr)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis history: ping: %w", err)
	}
	if max <= 0 {
		max = debuglog.DefaultHistorySize
	}
	h := &RedisHistory{
		client: client,
		key:    defaultHistoryKey,
		max:    max,
		queue:  make(chan []byte, recordQueueSize),
		done:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.writeLoop()
	return h, nil
}

func newRedisClient(addr string) (redis.UniversalClient, error) {
	if !strings.Contains(addr, "://") {
		return redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}}), nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("redis history: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Record queues entry for the writer goroutine. A full queue or a closed
// history drops the entry.
func (h *RedisHistory) Record(entry *debuglog.CopilotDebugLog) {
	if entry == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("redis history: marshal entry", "id", entry.ID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.pending.Add(1)
	select {
	case h.queue <- data:
	default:
		h.pending.Done()
		slog.Warn("redis history: queue full, dropping entry", "id", entry.ID)
	}
}

func (h *RedisHistory) writeLoop() {
	defer h.wg.Done()
	for {
		select {
		case data := <-h.queue:
			h.push(data)
		case <-h.done:
			for {
				select {
				case data := <-h.queue:
					h.push(data)
				default:
					return
				}
			}
		}
	}
}

// push writes data to the head of the list, then trims it to capacity.
func (h *RedisHistory) push(data []byte) {
	defer h.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, h.key, data)
		pipe.LTrim(ctx, h.key, 0, int64(h.max-1))
		return nil
	})
	if err != nil {
		slog.Error("redis history: record entry", "error", err)
	}
}

// flush waits until every queued entry has been written.
func (h *RedisHistory) flush() {
	h.pending.Wait()
}

func (h *RedisHistory) Recent(ctx context.Context, limit int) ([]*debuglog.CopilotDebugLog, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := h.client.LRange(ctx, h.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis history: range: %w", err)
	}
	out := make([]*debuglog.CopilotDebugLog, 0, len(raw))
	for _, s := range raw {
		var entry debuglog.CopilotDebugLog
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			slog.Debug("redis history: skipping undecodable entry", "error", err)
			continue
		}
		out = append(out, &entry)
	}
	return out, nil
}

func (h *RedisHistory) Get(ctx context.Context, id string) (*debuglog.CopilotDebugLog, error) {
	entries, err := h.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, debuglog.ErrLogNotFound
}

func (h *RedisHistory) Clear(ctx context.Context) error {
	if err := h.client.Del(ctx, h.key).Err(); err != nil {
		return fmt.Errorf("redis history: clear: %w", err)
	}
	return nil
}

func (h *RedisHistory) Len(ctx context.Context) (int, error) {
	n, err := h.client.LLen(ctx, h.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis history: len: %w", err)
	}
	return int(n), nil
}

// Close writes the queued entries and closes the client.
func (h *RedisHistory) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.done)
	h.mu.Unlock()

	h.wg.Wait()
	return h.client.Close()
}
