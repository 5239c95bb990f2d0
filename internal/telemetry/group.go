package telemetry

import (
	"cmp"
	"slices"
	"time"
)

// Group aggregates every event sharing a GroupKey.
type Group struct {
	Key      GroupKey `json:"key"`
	Category Category `json:"category"`
	// Level is the level of the most recent event.
	Level string `json:"level,omitempty"`
	// Levels counts the group's events per level.
	Levels    map[string]int    `json:"levels,omitempty"`
	Label     string            `json:"label,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Count     int               `json:"count"`
	FirstSeen time.Time         `json:"firstSeen"`
	LastSeen  time.Time         `json:"lastSeen"`
	// Samples holds the most recent contexts, oldest first.
	Samples []Context `json:"samples"`
}

type group struct {
	key       GroupKey
	category  Category
	level     string
	levels    map[string]int
	label     string
	attrs     map[string]string
	count     int
	firstSeen time.Time
	lastSeen  time.Time
	samples   *ring[Context]
	seq       uint64
}

func (g *group) view() Group {
	var attrs map[string]string
	if g.attrs != nil {
		attrs = make(map[string]string, len(g.attrs))
		for k, v := range g.attrs {
			attrs[k] = v
		}
	}
	var levels map[string]int
	if len(g.levels) > 0 {
		levels = make(map[string]int, len(g.levels))
		for k, v := range g.levels {
			levels[k] = v
		}
	}
	return Group{
		Key:       g.key,
		Category:  g.category,
		Level:     g.level,
		Levels:    levels,
		Label:     g.label,
		Attrs:     attrs,
		Count:     g.count,
		FirstSeen: g.firstSeen,
		LastSeen:  g.lastSeen,
		Samples:   g.samples.items(),
	}
}

// index is the grouping index: one group per key, insertion order tracked by seq.
type index struct {
	groups     map[GroupKey]*group
	sampleSize int
	seq        uint64
}

func newIndex(sampleSize int) *index {
	return &index{groups: make(map[GroupKey]*group), sampleSize: sampleSize}
}

func (ix *index) upsert(e Event, d Descriptor) *group {
	g, ok := ix.groups[e.Key]
	if !ok {
		ix.seq++
		g = &group{
			key:       e.Key,
			category:  e.Category,
			levels:    make(map[string]int),
			label:     d.Label,
			attrs:     d.Attrs,
			firstSeen: e.Timestamp,
			samples:   newRing[Context](ix.sampleSize),
			seq:       ix.seq,
		}
		ix.groups[e.Key] = g
	}
	g.count++
	if e.Level != "" {
		g.levels[e.Level]++
		g.level = e.Level
	}
	if e.Timestamp.After(g.lastSeen) {
		g.lastSeen = e.Timestamp
	}
	g.samples.push(e.Context)
	return g
}

// ordered returns the groups by count descending, then first seen, then insertion order.
func (ix *index) ordered() []*group {
	out := make([]*group, 0, len(ix.groups))
	for _, g := range ix.groups {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *group) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		if c := a.firstSeen.Compare(b.firstSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}

func (ix *index) reset() {
	ix.groups = make(map[GroupKey]*group)
	ix.seq = 0
}
