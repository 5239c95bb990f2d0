package telemetry

import (
	"reflect"
	"testing"
)

func TestRingEvictsOldest(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.push(i)
	}
	if got := r.items(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Fatalf("expected [3 4 5], got %v", got)
	}
}

func TestRingDropWhile(t *testing.T) {
	r := newRing[int](4)
	for i := 1; i <= 6; i++ {
		r.push(i)
	}
	if dropped := r.dropWhile(func(v int) bool { return v < 5 }); dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}
	r.push(7)
	if got := r.items(); !reflect.DeepEqual(got, []int{5, 6, 7}) {
		t.Fatalf("expected [5 6 7], got %v", got)
	}
}

func TestRingZeroCapacity(t *testing.T) {
	r := newRing[string](0)
	r.push("x")
	if r.len() != 0 || len(r.items()) != 0 {
		t.Fatal("expected zero capacity ring to stay empty")
	}
}
