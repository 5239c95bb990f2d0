package telemetry

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type logPayload struct {
	Level   string
	Message string
}

func classifyTestLog(_ Category, payload any) Descriptor {
	p, ok := payload.(logPayload)
	if !ok {
		return Descriptor{}
	}
	return Descriptor{Fields: []string{p.Level, p.Message}, Level: p.Level, Label: p.Message}
}

// fakeClock is advanced manually by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestAggregator(clock *fakeClock, opts ...Option) *Aggregator {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New("logs", classifyTestLog, opts...)
}

func TestHashIgnoresTimestampAndContext(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock)

	e1 := Event{Category: CategoryLog, Payload: logPayload{"error", "X"}, Timestamp: t0, Context: Context{Path: "/a"}}
	e2 := Event{Category: CategoryLog, Payload: logPayload{"error", "X"}, Timestamp: t0.Add(time.Hour), Context: Context{Path: "/b", SessionID: "s1"}}
	if agg.Hash(e1) != agg.Hash(e2) {
		t.Fatalf("expected equal keys, got %s and %s", agg.Hash(e1), agg.Hash(e2))
	}

	e3 := Event{Category: CategoryLog, Payload: logPayload{"info", "X"}}
	if agg.Hash(e1) == agg.Hash(e3) {
		t.Fatal("expected different keys for different levels")
	}
}

func TestHashFallsBackToUnknown(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock)

	tests := []struct {
		name    string
		payload any
	}{
		{"nil payload", nil},
		{"wrong type", map[string]string{"level": "error"}},
		{"empty message", logPayload{Level: "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := agg.Hash(Event{Category: CategoryLog, Payload: tt.payload})
			if got != UnknownKey(CategoryLog) {
				t.Fatalf("expected unknown key, got %s", got)
			}
		})
	}
}

func TestHashRecoversClassifierPanic(t *testing.T) {
	agg := New("boom", func(Category, any) Descriptor { panic("bad payload") })
	e := agg.Record(CategoryError, "anything", Context{})
	if e.Key != UnknownKey(CategoryError) {
		t.Fatalf("expected unknown key, got %s", e.Key)
	}
	if snap := agg.Snapshot(); snap.Total != 1 {
		t.Fatalf("expected event to be recorded, total=%d", snap.Total)
	}
}

func TestKeyForSeparatesFields(t *testing.T) {
	if KeyFor(CategoryLog, "a b", "c") == KeyFor(CategoryLog, "a", "b c") {
		t.Fatal("expected field boundaries to be part of the key")
	}
	if KeyFor(CategoryLog, "x") == KeyFor(CategoryError, "x") {
		t.Fatal("expected category to be part of the key")
	}
}

func TestGroupCountAndSamples(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock)

	const n = 150
	var key GroupKey
	for i := 0; i < n; i++ {
		e := agg.Record(CategoryLog, logPayload{"error", "X"}, Context{Path: fmt.Sprintf("/p/%d", i)})
		key = e.Key
		clock.Advance(time.Second)
	}

	g, ok := agg.Group(key)
	if !ok {
		t.Fatal("expected group to exist")
	}
	if g.Count != n {
		t.Fatalf("expected count %d, got %d", n, g.Count)
	}
	if len(g.Samples) != DefaultSampleSize {
		t.Fatalf("expected %d samples, got %d", DefaultSampleSize, len(g.Samples))
	}
	// Oldest kept sample is event n-100, newest is n-1.
	if g.Samples[0].Path != fmt.Sprintf("/p/%d", n-DefaultSampleSize) {
		t.Fatalf("unexpected oldest sample %q", g.Samples[0].Path)
	}
	if g.Samples[len(g.Samples)-1].Path != fmt.Sprintf("/p/%d", n-1) {
		t.Fatalf("unexpected newest sample %q", g.Samples[len(g.Samples)-1].Path)
	}
	if !g.FirstSeen.Equal(t0) || !g.LastSeen.Equal(t0.Add((n-1)*time.Second)) {
		t.Fatalf("unexpected first/last seen %v %v", g.FirstSeen, g.LastSeen)
	}
}

func TestGroupSamplesBelowCapacity(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock)

	var key GroupKey
	for i := 0; i < 3; i++ {
		key = agg.Record(CategoryLog, logPayload{"warn", "slow"}, Context{Component: fmt.Sprint(i)}).Key
	}
	g, _ := agg.Group(key)
	if len(g.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(g.Samples))
	}
	for i, s := range g.Samples {
		if s.Component != fmt.Sprint(i) {
			t.Fatalf("sample %d out of order: %q", i, s.Component)
		}
	}
}

func TestSnapshotUninitialized(t *testing.T) {
	agg := newTestAggregator(&fakeClock{now: t0})
	snap := agg.Snapshot()
	if snap.State != StateUninitialized {
		t.Fatalf("expected uninitialized, got %s", snap.State)
	}
	if snap.Total != 0 || snap.GroupCount != 0 || snap.RecentCount != 0 || len(snap.Top) != 0 {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}

func TestSnapshotScenario(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock)

	for i := 0; i < 3; i++ {
		agg.Record(CategoryLog, logPayload{"error", "X"}, Context{})
	}
	agg.Record(CategoryLog, logPayload{"info", "Y"}, Context{})

	snap := agg.Snapshot()
	if snap.State != StateActive {
		t.Fatalf("expected active, got %s", snap.State)
	}
	if snap.Total != 4 {
		t.Fatalf("expected total 4, got %d", snap.Total)
	}
	if snap.ByLevel["error"] != 3 || snap.ByLevel["info"] != 1 {
		t.Fatalf("unexpected levels %v", snap.ByLevel)
	}
	if snap.ByCategory[CategoryLog] != 4 {
		t.Fatalf("unexpected categories %v", snap.ByCategory)
	}
	if len(snap.Top) != 2 || snap.Top[0].Label != "X" || snap.Top[0].Count != 3 {
		t.Fatalf("unexpected top %+v", snap.Top)
	}
}

func TestSnapshotIsDeterministic(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock)
	for i := 0; i < 20; i++ {
		agg.Record(CategoryLog, logPayload{"info", fmt.Sprintf("m%d", i%4)}, Context{Path: "/"})
	}
	a, b := agg.Snapshot(), agg.Snapshot()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected equal snapshots\n%+v\n%+v", a, b)
	}
}

func TestTopTieBreakByFirstSeen(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock, WithTopN(3))

	for _, msg := range []string{"c", "a", "b"} {
		agg.Record(CategoryLog, logPayload{"info", msg}, Context{})
		clock.Advance(time.Second)
	}
	agg.Record(CategoryLog, logPayload{"info", "b"}, Context{})

	top := agg.Snapshot().Top
	got := []string{top[0].Label, top[1].Label, top[2].Label}
	want := []string{"b", "c", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTopTieBreakByInsertionOrder(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock)
	for _, msg := range []string{"z", "y", "x"} {
		agg.Record(CategoryLog, logPayload{"info", msg}, Context{})
	}
	top := agg.Snapshot().Top
	if top[0].Label != "z" || top[1].Label != "y" || top[2].Label != "x" {
		t.Fatalf("expected insertion order, got %s %s %s", top[0].Label, top[1].Label, top[2].Label)
	}
}

func TestRecentRateWindow(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock)

	for i := 0; i < 5; i++ {
		agg.Record(CategoryLog, logPayload{"info", "tick"}, Context{})
		clock.Advance(2 * time.Minute)
	}
	// The last event is now two minutes old.
	snap := agg.Snapshot()
	if snap.Total != 5 {
		t.Fatalf("expected total 5, got %d", snap.Total)
	}
	if snap.RecentCount != 0 || snap.RatePerMinute != 0 {
		t.Fatalf("expected no recent events, got %d (%.1f/min)", snap.RecentCount, snap.RatePerMinute)
	}

	agg.Record(CategoryLog, logPayload{"info", "tick"}, Context{})
	clock.Advance(10 * time.Second)
	agg.Record(CategoryLog, logPayload{"info", "tock"}, Context{})
	snap = agg.Snapshot()
	if snap.RecentCount != 2 || snap.RatePerMinute != 2 {
		t.Fatalf("expected 2 recent events, got %d (%.1f/min)", snap.RecentCount, snap.RatePerMinute)
	}
}

func TestRatePerMinuteScalesWithWindow(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock, WithRateWindow(30*time.Second))
	for i := 0; i < 3; i++ {
		agg.Record(CategoryLog, logPayload{"info", "x"}, Context{})
	}
	if got := agg.Snapshot().RatePerMinute; got != 6 {
		t.Fatalf("expected 6/min, got %.1f", got)
	}
}

func TestSweepRemovesStaleGroups(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock, WithRetention(time.Hour))

	old := agg.Record(CategoryLog, logPayload{"error", "old"}, Context{})
	clock.Advance(50 * time.Minute)
	for i := 0; i < 4; i++ {
		agg.Record(CategoryLog, logPayload{"error", "fresh"}, Context{})
	}
	clock.Advance(20 * time.Minute)

	if removed := agg.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed group, got %d", removed)
	}
	if _, ok := agg.Group(old.Key); ok {
		t.Fatal("expected stale group to be gone")
	}
	snap := agg.Snapshot()
	if snap.GroupCount != 1 || snap.Top[0].Label != "fresh" || snap.Top[0].Count != 4 {
		t.Fatalf("unexpected snapshot after sweep %+v", snap)
	}
	for _, e := range agg.Recent(0) {
		if e.Key == old.Key {
			t.Fatal("expected stale event to be pruned from recent events")
		}
	}
}

func TestSweepKeepsCountOfSurvivingGroup(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock, WithRetention(time.Hour))

	var key GroupKey
	for i := 0; i < 3; i++ {
		key = agg.Record(CategoryLog, logPayload{"warn", "w"}, Context{}).Key
		clock.Advance(45 * time.Minute)
	}
	// First occurrence is 135 minutes old, last one 45 minutes old.
	agg.Sweep()
	g, ok := agg.Group(key)
	if !ok || g.Count != 3 {
		t.Fatalf("expected surviving group with count 3, got %+v (ok=%v)", g, ok)
	}
}

func TestRecordSweepsOpportunistically(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock, WithRetention(time.Hour), WithSweepInterval(time.Hour))

	stale := agg.Record(CategoryLog, logPayload{"info", "stale"}, Context{})
	clock.Advance(2 * time.Hour)

	var kinds []UpdateKind
	agg.Subscribe(func(u Update) { kinds = append(kinds, u.Kind) })
	agg.Record(CategoryLog, logPayload{"info", "new"}, Context{})

	if _, ok := agg.Group(stale.Key); ok {
		t.Fatal("expected opportunistic sweep to remove stale group")
	}
	if !reflect.DeepEqual(kinds, []UpdateKind{UpdateRecorded, UpdateSwept}) {
		t.Fatalf("unexpected update kinds %v", kinds)
	}
}

func TestClearKeepsSubscribersAndActiveState(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock)

	var updates []Update
	agg.Subscribe(func(u Update) { updates = append(updates, u) })
	agg.Record(CategoryLog, logPayload{"info", "a"}, Context{})
	agg.Clear()

	snap := agg.Snapshot()
	if snap.State != StateActive || snap.Total != 0 || snap.GroupCount != 0 {
		t.Fatalf("expected empty active snapshot, got %+v", snap)
	}
	if len(agg.Recent(0)) != 0 {
		t.Fatal("expected recent events to be cleared")
	}
	agg.Record(CategoryLog, logPayload{"info", "b"}, Context{})
	if len(updates) != 3 || updates[1].Kind != UpdateCleared {
		t.Fatalf("expected recorded, cleared, recorded; got %+v", updates)
	}
}

func TestRecentNewestFirstAndBounded(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := newTestAggregator(clock, WithRecentLimit(5))
	for i := 0; i < 8; i++ {
		agg.Record(CategoryLog, logPayload{"info", fmt.Sprint(i)}, Context{})
	}
	all := agg.Recent(0)
	if len(all) != 5 {
		t.Fatalf("expected 5 kept events, got %d", len(all))
	}
	if all[0].Payload.(logPayload).Message != "7" || all[4].Payload.(logPayload).Message != "3" {
		t.Fatalf("unexpected order: first=%v last=%v", all[0].Payload, all[4].Payload)
	}
	if got := agg.Recent(2); len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
}

func TestRecordCopiesContextTags(t *testing.T) {
	agg := newTestAggregator(&fakeClock{now: t0})
	tags := map[string]string{"form": "inspection"}
	e := agg.Record(CategoryLog, logPayload{"info", "submit"}, Context{Tags: tags})
	tags["form"] = "changed"
	if e.Context.Tags["form"] != "inspection" {
		t.Fatal("expected event context to be isolated from caller mutations")
	}
}

func TestConcurrentRecord(t *testing.T) {
	agg := New("logs", classifyTestLog)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				agg.Record(CategoryLog, logPayload{"info", "same"}, Context{})
				_ = agg.Snapshot()
			}
		}()
	}
	wg.Wait()
	if got := agg.Snapshot().Total; got != 800 {
		t.Fatalf("expected 800 events, got %d", got)
	}
}

func TestDeriveRecoversPanic(t *testing.T) {
	got := Derive("ratio", 0.0, func() float64 {
		var m map[string]*int
		return float64(*m["missing"])
	})
	if got != 0 {
		t.Fatalf("expected fallback, got %v", got)
	}
	if v := Derive("ok", 1, func() int { return 42 }); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestByLevelCountsEachEventsOwnLevel(t *testing.T) {
	clock := &fakeClock{now: t0}
	// Level is not part of the key, so one group collects several levels.
	agg := New("errors", func(_ Category, payload any) Descriptor {
		p, _ := payload.(logPayload)
		return Descriptor{Fields: []string{p.Message}, Level: p.Level, Label: p.Message}
	}, WithClock(clock.Now))

	key := agg.Record(CategoryError, logPayload{"low", "x is undefined"}, Context{}).Key
	for i := 0; i < 5; i++ {
		agg.Record(CategoryError, logPayload{"high", "x is undefined"}, Context{})
	}

	snap := agg.Snapshot()
	if snap.GroupCount != 1 || snap.Total != 6 {
		t.Fatalf("expected one group of 6, got %+v", snap)
	}
	if !reflect.DeepEqual(snap.ByLevel, map[string]int{"low": 1, "high": 5}) {
		t.Fatalf("unexpected byLevel %v", snap.ByLevel)
	}
	g, _ := agg.Group(key)
	if g.Level != "high" || g.Levels["low"] != 1 || g.Levels["high"] != 5 {
		t.Fatalf("unexpected group levels %q %v", g.Level, g.Levels)
	}
}
