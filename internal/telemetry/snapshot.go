package telemetry

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Snapshot is a derived read of the aggregator state. It is recomputed on every call.
type Snapshot struct {
	Monitor       string           `json:"monitor"`
	State         State            `json:"state"`
	Total         int              `json:"total"`
	GroupCount    int              `json:"groupCount"`
	ByCategory    map[Category]int `json:"byCategory"`
	ByLevel       map[string]int   `json:"byLevel"`
	Top           []Group          `json:"top"`
	RecentCount   int              `json:"recentCount"`
	RatePerMinute float64          `json:"ratePerMinute"`
	LastEventAt   time.Time        `json:"lastEventAt"`
}

// Snapshot computes totals, the top groups and the recent rate from the current state.
func (a *Aggregator) Snapshot() Snapshot {
	now := a.opts.clock()

	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Monitor:     a.name,
		State:       a.state,
		ByCategory:  make(map[Category]int),
		ByLevel:     make(map[string]int),
		Top:         []Group{},
		LastEventAt: a.lastEvent,
	}
	if a.state == StateUninitialized {
		return snap
	}

	for _, g := range a.index.groups {
		snap.Total += g.count
		snap.ByCategory[g.category] += g.count
		for level, n := range g.levels {
			snap.ByLevel[level] += n
		}
	}
	snap.GroupCount = len(a.index.groups)

	ordered := a.index.ordered()
	n := min(a.opts.topN, len(ordered))
	for _, g := range ordered[:n] {
		snap.Top = append(snap.Top, g.view())
	}

	cutoff := now.Add(-a.opts.rateWindow)
	for _, ts := range a.times {
		if ts.After(cutoff) && !ts.After(now) {
			snap.RecentCount++
		}
	}
	snap.RatePerMinute = float64(snap.RecentCount) * float64(time.Minute) / float64(a.opts.rateWindow)
	return snap
}

// Derive computes one derived figure. A panic inside fn is logged and the
// fallback returned so a single broken figure never takes down a snapshot.
func Derive[T any](figure string, fallback T, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Str("figure", figure).Msg("Derived figure failed, using fallback")
			out = fallback
		}
	}()
	return fn()
}
