package voice

import "sync"

const defaultSubscriptionBuffer = 64

// Emitter fans events out to subscriptions in emission order.
type Emitter struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewEmitter returns an emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[*Subscription]struct{})}
}

// Subscription is one listener registered on an Emitter.
type Subscription struct {
	emitter *Emitter
	events  chan Event
	done    chan struct{}
	once    sync.Once
}

// Subscribe registers a listener. A closed emitter returns a subscription
// whose Events channel is already closed.
func (e *Emitter) Subscribe() *Subscription {
	sub := &Subscription{
		emitter: e,
		events:  make(chan Event, defaultSubscriptionBuffer),
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(sub.events)
		return sub
	}
	e.subs[sub] = struct{}{}
	return sub
}

// Emit delivers ev to every live subscription, blocking while a subscriber's
// buffer is full. It is serialized so all subscribers observe one order.
func (e *Emitter) Emit(ev Event) {
	e.EmitUntil(nil, ev)
}

// EmitUntil is Emit that gives up once abort is closed. It reports whether
// ev was offered to every subscription.
func (e *Emitter) EmitUntil(abort <-chan struct{}, ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	for sub := range e.subs {
		select {
		case sub.events <- ev:
		case <-sub.done:
		case <-abort:
			return false
		}
	}
	return true
}

// Subscribers reports the number of live subscriptions.
func (e *Emitter) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Close closes every subscription's event stream. Emit becomes a no-op.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for sub := range e.subs {
		delete(e.subs, sub)
		close(sub.events)
	}
}

// Events returns the inbound event stream.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		e := s.emitter
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[s]; ok {
			delete(e.subs, s)
			close(s.events)
		}
	})
}
