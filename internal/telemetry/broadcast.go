package telemetry

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// UpdateKind tells subscribers what changed.
type UpdateKind string

const (
	UpdateRecorded UpdateKind = "recorded"
	UpdateCleared  UpdateKind = "cleared"
	UpdateSwept    UpdateKind = "swept"
)

// Update is delivered to subscribers after the aggregator state has changed.
type Update struct {
	Monitor string     `json:"monitor"`
	Kind    UpdateKind `json:"kind"`
	Event   *Event     `json:"event,omitempty"`
	Removed int        `json:"removed,omitempty"`
}

// Subscriber receives updates synchronously. A panicking subscriber is
// recovered and logged; the remaining subscribers still run.
type Subscriber func(Update)

// Subscribable is anything that delivers updates to subscribers.
type Subscribable interface {
	Subscribe(fn Subscriber) func()
}

type subscription struct {
	id uint64
	fn Subscriber
}

type broadcaster struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	logger zerolog.Logger
}

func (b *broadcaster) subscribe(fn Subscriber) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	// Copy on write so an in-flight broadcast keeps iterating its own slice.
	subs := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(subs, b.subs)
	b.subs = append(subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs = slices.DeleteFunc(slices.Clone(b.subs), func(s subscription) bool { return s.id == id })
		})
	}
}

func (b *broadcaster) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *broadcaster) broadcast(u Update) {
	b.mu.Lock()
	targets := b.subs
	b.mu.Unlock()

	for _, s := range targets {
		b.deliver(s, u)
	}
}

func (b *broadcaster) deliver(s subscription, u Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("monitor", u.Monitor).
				Str("kind", string(u.Kind)).
				Uint64("subscriber", s.id).
				Msg("Subscriber panicked during broadcast")
		}
	}()
	s.fn(u)
}
