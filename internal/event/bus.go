package event

import "sync"

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous typed publish/subscribe hub. One bus belongs to one
// match; handlers run on the publishing goroutine and must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	byType map[Type][]subscription
	all    []subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{byType: make(map[Type][]subscription)}
}

// Subscribe registers h for events of type t and returns a function that
// removes the subscription.
func (b *Bus) Subscribe(t Type, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[t] = append(b.byType[t], subscription{id: id, handler: h})
	return func() { b.unsubscribe(t, id) }
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})
	return func() { b.unsubscribe("", id) }
}

func (b *Bus) unsubscribe(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t == "" {
		b.all = remove(b.all, id)
		return
	}
	b.byType[t] = remove(b.byType[t], id)
}

func remove(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Publish delivers e to type subscribers first, then to catch-all subscribers,
// each in registration order. A nil bus drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil || e == nil {
		return
	}
	b.mu.RLock()
	typed := b.byType[e.EventType()]
	all := b.all
	b.mu.RUnlock()

	for _, s := range typed {
		s.handler(e)
	}
	for _, s := range all {
		s.handler(e)
	}
}

// On registers a handler for the concrete event type T.
//
//	event.On(bus, func(e event.PlayerKicked) { ... })
func On[T Event](b *Bus, fn func(T)) func() {
	var zero T
	return b.Subscribe(zero.EventType(), func(e Event) {
		if typed, ok := e.(T); ok {
			fn(typed)
		}
	})
}

// Recorder collects every event published on a bus. Useful in tests and for
// draining per-tick events.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record subscribes the recorder to all events on b.
func (r *Recorder) Record(b *Bus) func() {
	return b.SubscribeAll(func(e Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
