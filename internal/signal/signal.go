// Package signal delivers completion notices from background workers to
// connected clients. Workers publish through the Publisher interface; the
// in-process Bus fans events out to per-account subscribers, and the Hub
// exposes those subscriptions over websockets.
package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventType names a notice.
type EventType string

const (
	// ScanComplete is sent when an analysis run finished.
	ScanComplete EventType = "scan_complete"
	// ScanError is sent when an analysis run failed.
	ScanError EventType = "scan_error"
	// ScanInfo is sent when a run was skipped for lack of data.
	ScanInfo EventType = "scan_info"
)

// Event is one notice addressed to a single account.
type Event struct {
	Type      EventType `json:"type"`
	AccountID string    `json:"accountId"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Publisher sends an event to every listener of accountID. Delivery is best
// effort: a missing or slow listener never blocks or fails the caller.
type Publisher interface {
	Publish(ctx context.Context, accountID string, ev Event) error
}

// ErrNoAccount is returned when publishing without an account id.
var ErrNoAccount = errors.New("signal: account id is empty")

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_events_published_total",
			Help: "Total number of completion events published.",
		},
		[]string{"type"},
	)
	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signal_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full.",
		},
	)
	subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signal_subscribers",
			Help: "Current number of event subscribers.",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsPublished, eventsDropped, subscribers)
}

// Bus is an in-process, per-account fan-out. It is safe for concurrent use.
type Bus struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

var _ Publisher = (*Bus)(nil)

// NewBus returns a Bus whose subscriber channels hold up to buffer events
// (values < 1 are coerced to 1).
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{buffer: buffer, subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe attaches a listener to accountID. The returned cancel func
// detaches it and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(accountID string) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	set, ok := b.subs[accountID]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[accountID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()
	subscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[accountID], ch)
			if len(b.subs[accountID]) == 0 {
				delete(b.subs, accountID)
			}
			close(ch)
			b.mu.Unlock()
			subscribers.Dec()
		})
	}
}

// Publish delivers ev to every current subscriber of accountID without
// blocking; a subscriber whose buffer is full misses the event.
func (b *Bus) Publish(_ context.Context, accountID string, ev Event) error {
	if accountID == "" {
		return ErrNoAccount
	}
	ev.AccountID = accountID
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	eventsPublished.WithLabelValues(string(ev.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[accountID] {
		select {
		case ch <- ev:
		default:
			eventsDropped.Inc()
		}
	}
	return nil
}
