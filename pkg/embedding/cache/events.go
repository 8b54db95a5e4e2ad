package cache

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies cache lifecycle notifications.
type EventType string

// Cache event types.
const (
	EventHit     EventType = "hit"
	EventMiss    EventType = "miss"
	EventStore   EventType = "store"
	EventEvict   EventType = "evict"
	EventPromote EventType = "promote"
	EventExpire  EventType = "expire"
	EventDrop    EventType = "drop"
)

// Event is a cache lifecycle notification.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	Key  CacheKey  `json:"key"`
	Tier Tier      `json:"tier,omitempty"`
	At   time.Time `json:"at"`
}

// EventSink receives cache events. Implementations must not block; the
// cache calls OnEvent on its own hot paths.
type EventSink interface {
	OnEvent(event Event)
}

// NoopEventSink discards all events.
type NoopEventSink struct{}

func (NoopEventSink) OnEvent(Event) {}

// ChannelEventSink delivers events on a bounded channel, dropping when
// the consumer falls behind.
type ChannelEventSink struct {
	ch chan Event
}

// NewChannelEventSink creates a sink with the given buffer size.
func NewChannelEventSink(buffer int) *ChannelEventSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelEventSink{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelEventSink) Events() <-chan Event {
	return s.ch
}

// OnEvent enqueues the event, dropping it if the buffer is full.
func (s *ChannelEventSink) OnEvent(event Event) {
	select {
	case s.ch <- event:
	default:
	}
}

func newEvent(eventType EventType, key CacheKey, tier Tier, at time.Time) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Key:  key,
		Tier: tier,
		At:   at,
	}
}
