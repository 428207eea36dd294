package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"webhookrecv/internal/capture"

	"github.com/pterm/pterm"
)

// subscriberBuffer is the number of events held for a slow subscriber before dropping
const subscriberBuffer = 32

// Event is a compact view of a captured request pushed to live subscribers
type Event struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	SourceIP   string         `json:"source_ip"`
	ParserType *string        `json:"parser_type"`
	ParsedData map[string]any `json:"parsed_data"`
}

// NewEvent builds a feed event from a captured request
func NewEvent(req capture.CapturedRequest) Event {
	ev := Event{
		ID:         req.ID,
		Timestamp:  req.Timestamp,
		Method:     req.Method,
		Path:       req.Path,
		SourceIP:   req.SourceAddress,
		ParsedData: req.ParsedSummary(),
	}
	if provider := req.ProviderType(); provider != "" {
		ev.ParserType = &provider
	}
	return ev
}

// Feed fans captured requests out to live subscribers
type Feed struct {
	logger *pterm.Logger

	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	dropped     atomic.Int64
}

// NewFeed creates a new live feed
func NewFeed(logger *pterm.Logger) *Feed {
	return &Feed{
		logger:      logger,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a subscriber. The returned cancel func must be called
// once the subscriber is done; it closes the channel.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	count := len(f.subscribers)
	f.mu.Unlock()

	f.logger.Debug("Live feed subscriber added", f.logger.Args("subscribers", count))

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, ch)
			close(ch)
			f.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish sends an event to every subscriber without blocking.
// Subscribers whose buffer is full miss the event.
func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			f.dropped.Add(1)
			f.logger.Trace("Live feed subscriber too slow, event dropped", f.logger.Args("id", ev.ID))
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Dropped returns how many events were skipped for slow subscribers
func (f *Feed) Dropped() int64 {
	return f.dropped.Load()
}
