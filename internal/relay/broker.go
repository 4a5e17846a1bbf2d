package relay

import (
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/devlog_agent/internal/debuglog"
)

const subscriberBufSize = 256

// EventDebugLog is the SSE event name for decoded entries.
const EventDebugLog = "debug_log"

// Event is a single decoded entry fanned out to stream clients.
type Event struct {
	Name  string
	Entry *debuglog.CopilotDebugLog
}

// Broker fans out decoded entries to all subscribed stream clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
	dropped     atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client. The channel is buffered; slow consumers
// have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends evt to all subscribers without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Record implements debuglog.Recorder.
func (b *Broker) Record(entry *debuglog.CopilotDebugLog) {
	if entry == nil {
		return
	}
	b.Publish(Event{Name: EventDebugLog, Entry: entry})
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped for full subscriber buffers.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}
