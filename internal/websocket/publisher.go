package websocket

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/telemetry"
)

// Source is a monitor whose snapshots can be pushed to clients.
type Source interface {
	Name() string
	Snapshot() telemetry.Snapshot
	View() any
	Subscribe(fn telemetry.Subscriber) func()
}

// Sink receives encoded messages for a topic.
type Sink interface {
	Publish(topic string, message []byte)
}

type pending struct {
	generation uint64
	timer      *time.Timer
}

// Publisher pushes a snapshot of a monitor to its topic after the monitor
// changes. Bursts of updates are coalesced into one push per debounce period,
// and a push computed while a newer update arrived is discarded in favour of
// the push that update schedules.
type Publisher struct {
	sink     Sink
	debounce time.Duration

	mu      sync.Mutex
	sources map[string]Source
	state   map[string]*pending
	unsubs  []func()
	closed  bool
}

// NewPublisher creates a new Publisher.
func NewPublisher(sink Sink, debounce time.Duration) *Publisher {
	return &Publisher{
		sink:     sink,
		debounce: debounce,
		sources:  make(map[string]Source),
		state:    make(map[string]*pending),
	}
}

// Watch subscribes the publisher to a monitor.
func (p *Publisher) Watch(src Source) {
	name := src.Name()
	unsub := src.Subscribe(func(telemetry.Update) { p.schedule(name) })

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[name] = src
	p.state[name] = &pending{}
	p.unsubs = append(p.unsubs, unsub)
}

// Current encodes the present snapshot of a monitor.
func (p *Publisher) Current(name string) ([]byte, bool) {
	p.mu.Lock()
	src, ok := p.sources[name]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}
	return NewSnapshotMessage(src.Snapshot(), src.View()), true
}

// Close stops watching every monitor and cancels pending pushes.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	unsubs := p.unsubs
	p.unsubs = nil
	for _, st := range p.state {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
	p.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
}

func (p *Publisher) schedule(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.state[name]
	if !ok || p.closed {
		return
	}
	st.generation++
	if st.timer != nil {
		return
	}
	if p.debounce <= 0 {
		gen := st.generation
		go p.flush(name, gen)
		return
	}
	gen := st.generation
	st.timer = time.AfterFunc(p.debounce, func() {
		p.mu.Lock()
		if cur, ok := p.state[name]; ok {
			cur.timer = nil
			gen = cur.generation
		}
		p.mu.Unlock()
		p.flush(name, gen)
	})
}

// flush computes and publishes the snapshot for generation gen unless a newer
// update has arrived in the meantime.
func (p *Publisher) flush(name string, gen uint64) {
	p.mu.Lock()
	src, ok := p.sources[name]
	closed := p.closed
	p.mu.Unlock()
	if !ok || closed {
		return
	}

	msg := NewSnapshotMessage(src.Snapshot(), src.View())

	p.mu.Lock()
	st := p.state[name]
	stale := st == nil || st.generation != gen || p.closed
	p.mu.Unlock()
	if stale {
		log.Debug().Str("monitor", name).Uint64("generation", gen).Msg("Discarding stale snapshot push")
		return
	}
	p.sink.Publish(name, msg)
}
