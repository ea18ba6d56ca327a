package engine

import (
	"context"
	"sync"
	"time"

	"wmscore/logging"
)

type EventType int

type SubscriberID int

// Event is one committed change. Meta is the trace id and request source
// of the request that made it.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Meta      logging.RequestMeta
	Payload   any
}

// typeMask selects event types; zero selects every type.
type typeMask uint64

func maskOf(types []EventType) typeMask {
	var m typeMask
	for _, t := range types {
		m |= 1 << uint(t)
	}
	return m
}

func (m typeMask) has(t EventType) bool { return m == 0 || m&(1<<uint(t)) != 0 }

type subscription struct {
	id   SubscriberID
	fn   func(Event)
	mask typeMask
}

// EventBus delivers committed changes to in-process subscribers: metrics,
// the stock snapshot cache and the log. Delivery is synchronous and in
// subscription order.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for the given types, or for every type when none
// are given.
func (eb *EventBus) Subscribe(fn func(Event), types ...EventType) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	eb.subs = append(eb.subs, subscription{id: eb.nextID, fn: fn, mask: maskOf(types)})
	return eb.nextID
}

func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, s := range eb.subs {
		if s.id == id {
			eb.subs = append(eb.subs[:i:i], eb.subs[i+1:]...)
			return
		}
	}
}

// Emit stamps evt with the time and ctx's request meta and delivers it. A
// panicking subscriber is logged; the others still run.
func (eb *EventBus) Emit(ctx context.Context, evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Meta == (logging.RequestMeta{}) {
		evt.Meta = logging.RequestMetaFrom(ctx)
	}
	eb.mu.RLock()
	subs := eb.subs
	eb.mu.RUnlock()

	for _, s := range subs {
		if s.mask.has(evt.Type) {
			eb.deliver(s, evt)
		}
	}
}

func (eb *EventBus) deliver(s subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger.Error().Interface("panic", r).Int("subscriber", int(s.id)).
				Str("event", evt.Type.String()).Str("trace_id", evt.Meta.TraceID).
				Msg("eventbus: subscriber panicked")
		}
	}()
	s.fn(evt)
}
