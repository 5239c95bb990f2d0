package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the lifecycle state of an Aggregator.
type State string

const (
	// StateUninitialized holds until the first Record.
	StateUninitialized State = "uninitialized"
	// StateActive holds for the rest of the process, including after Clear.
	StateActive State = "active"
)

// Aggregator records events of one monitor, groups them and serves snapshots.
// It is safe for concurrent use.
type Aggregator struct {
	name     string
	classify Classifier
	opts     options
	logger   zerolog.Logger
	subs     *broadcaster

	mu        sync.Mutex
	state     State
	index     *index
	recent    *ring[Event]
	times     []time.Time
	lastEvent time.Time
	lastSweep time.Time
}

// New creates an Aggregator named after the monitor it backs.
func New(name string, classify Classifier, opts ...Option) *Aggregator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.log().With().Str("monitor", name).Logger()
	if classify == nil {
		classify = func(Category, any) Descriptor { return Descriptor{} }
	}
	return &Aggregator{
		name:     name,
		classify: classify,
		opts:     o,
		logger:   logger,
		subs:     &broadcaster{logger: logger},
		state:    StateUninitialized,
		index:    newIndex(o.sampleSize),
		recent:   newRing[Event](o.recentLimit),
	}
}

// Name returns the monitor name.
func (a *Aggregator) Name() string { return a.name }

// Now returns the aggregator's clock reading.
func (a *Aggregator) Now() time.Time { return a.opts.clock() }

// TopN returns how many groups a snapshot lists.
func (a *Aggregator) TopN() int { return a.opts.topN }

// RateWindow returns the trailing window used for the recent rate.
func (a *Aggregator) RateWindow() time.Duration { return a.opts.rateWindow }

// State reports whether anything has been recorded yet.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Hash returns the GroupKey of an event from its category and payload only.
func (a *Aggregator) Hash(e Event) GroupKey {
	d, ok := a.describe(e.Category, e.Payload)
	if !ok {
		return UnknownKey(e.Category)
	}
	return KeyFor(e.Category, d.Fields...)
}

// Record stamps and stores an event, then notifies subscribers. It never fails.
func (a *Aggregator) Record(category Category, payload any, ctx Context) Event {
	now := a.opts.clock()
	d, ok := a.describe(category, payload)
	key := UnknownKey(category)
	if ok {
		key = KeyFor(category, d.Fields...)
	}
	e := Event{
		ID:        uuid.NewString(),
		Category:  category,
		Key:       key,
		Level:     d.Level,
		Payload:   payload,
		Context:   ctx.clone(),
		Timestamp: now,
	}

	a.mu.Lock()
	if a.state == StateUninitialized {
		a.state = StateActive
		a.lastSweep = now
	}
	a.index.upsert(e, d)
	a.recent.push(e)
	a.times = append(a.times, now)
	a.pruneTimesLocked(now)
	if now.After(a.lastEvent) {
		a.lastEvent = now
	}
	removed := 0
	if now.Sub(a.lastSweep) >= a.opts.sweepInterval {
		removed = a.sweepLocked(now)
	}
	a.mu.Unlock()

	a.subs.broadcast(Update{Monitor: a.name, Kind: UpdateRecorded, Event: &e})
	if removed > 0 {
		a.subs.broadcast(Update{Monitor: a.name, Kind: UpdateSwept, Removed: removed})
	}
	return e
}

// Subscribe registers fn for every future update and returns its unsubscribe function.
func (a *Aggregator) Subscribe(fn Subscriber) func() {
	return a.subs.subscribe(fn)
}

// Subscribers returns the number of attached subscribers.
func (a *Aggregator) Subscribers() int {
	return a.subs.len()
}

// Groups returns every group, most frequent first.
func (a *Aggregator) Groups() []Group {
	a.mu.Lock()
	defer a.mu.Unlock()
	ordered := a.index.ordered()
	out := make([]Group, len(ordered))
	for i, g := range ordered {
		out[i] = g.view()
	}
	return out
}

// Group looks up a single group.
func (a *Aggregator) Group(key GroupKey) (Group, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.index.groups[key]
	if !ok {
		return Group{}, false
	}
	return g.view(), true
}

// Recent returns up to limit recorded events, newest first. A limit <= 0 returns all kept events.
func (a *Aggregator) Recent(limit int) []Event {
	a.mu.Lock()
	items := a.recent.items()
	a.mu.Unlock()

	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]Event, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, items[i])
	}
	return out
}

// Sweep drops groups not seen within the retention window.
func (a *Aggregator) Sweep() int {
	return a.SweepAt(a.opts.clock())
}

// SweepAt runs the retention sweep as if the current time were now.
func (a *Aggregator) SweepAt(now time.Time) int {
	a.mu.Lock()
	removed := a.sweepLocked(now)
	a.mu.Unlock()

	if removed > 0 {
		a.logger.Debug().Int("removed", removed).Msg("Retention sweep removed groups")
		a.subs.broadcast(Update{Monitor: a.name, Kind: UpdateSwept, Removed: removed})
	}
	return removed
}

// Clear empties all recorded state. Subscribers stay attached and the
// aggregator stays active.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.index.reset()
	a.recent.reset()
	a.times = nil
	a.lastEvent = time.Time{}
	a.lastSweep = a.opts.clock()
	a.state = StateActive
	a.mu.Unlock()

	a.subs.broadcast(Update{Monitor: a.name, Kind: UpdateCleared})
}

func (a *Aggregator) sweepLocked(now time.Time) int {
	cutoff := now.Add(-a.opts.retention)
	removed := 0
	for key, g := range a.index.groups {
		if g.lastSeen.Before(cutoff) {
			delete(a.index.groups, key)
			removed++
		}
	}
	a.recent.dropWhile(func(e Event) bool { return e.Timestamp.Before(cutoff) })
	a.lastSweep = now
	return removed
}

func (a *Aggregator) pruneTimesLocked(now time.Time) {
	cutoff := now.Add(-a.opts.rateWindow)
	i := 0
	for i < len(a.times) && !a.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		a.times = append(a.times[:0], a.times[i:]...)
	}
}

func (a *Aggregator) describe(category Category, payload any) (d Descriptor, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn().Interface("panic", r).Str("category", string(category)).Msg("Classifier panicked, using fallback group key")
			d, ok = Descriptor{}, false
		}
	}()
	return a.classify(category, payload), true
}
