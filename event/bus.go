package event

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/flowmech/conduct/id"
)

// Bus is an in-process publish/subscribe channel for lifecycle events.
// Each subscription gets its own buffered channel; delivery within one
// subscription follows emission order. Publish never blocks: if a
// subscriber's buffer is full the event is dropped for that subscriber
// and a warning is logged.
type Bus struct {
	mu     sync.Mutex
	subs   []*Subscription
	buffer int
	logger *slog.Logger
	closed bool
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBuffer sets the per-subscription channel capacity.
func WithBuffer(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates an event bus. Default buffer is 64 events per
// subscription.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		buffer: 64,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscription for the given kinds. An empty
// kind list subscribes to all events. The caller must drain the
// subscription channel or events will be dropped once the buffer fills.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	sub := &Subscription{
		bus: b,
		ch:  make(chan *Event, b.buffer),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Publish delivers an event to all matching subscriptions. The event's
// ID and CreatedAt are stamped if unset.
func (b *Bus) Publish(evt *Event) {
	if evt.ID.IsNil() {
		evt.ID = id.NewEventID()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if !sub.matches(evt.Kind) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.logger.Warn("event dropped: subscriber buffer full",
				slog.String("kind", string(evt.Kind)),
				slog.String("execution_id", evt.ExecutionID.String()),
			)
		}
	}
}

// Close closes the bus and all subscription channels. Publish becomes a
// no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

// unsubscribe removes a subscription and closes its channel.
func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	i := slices.Index(b.subs, sub)
	if i < 0 {
		return
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	close(sub.ch)
}

// Subscription is one registered listener on the Bus.
type Subscription struct {
	bus   *Bus
	kinds map[Kind]struct{} // nil means all kinds
	ch    chan *Event
	once  sync.Once
}

// C returns the channel events are delivered on. The channel is closed
// when the subscription or the bus is closed.
func (s *Subscription) C() <-chan *Event { return s.ch }

// Close unsubscribes from the bus and closes the delivery channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
	})
}

func (s *Subscription) matches(k Kind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}
