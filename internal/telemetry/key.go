package telemetry

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// GroupKey identifies every event sharing the same category-defining fields.
type GroupKey string

// unknownSuffix is used when the defining fields cannot be extracted.
const unknownSuffix = "unknown"

// fieldSeparator keeps ("a b", "c") and ("a", "b c") from colliding.
const fieldSeparator = "\x1f"

// Descriptor is what a Classifier extracts from an event payload.
type Descriptor struct {
	// Fields are the category-defining values, in a fixed order.
	Fields []string
	// Level is the severity or level bucket the event counts towards.
	Level string
	// Label is the human readable text shown for the group.
	Label string
	// Attrs are named copies of interesting fields, kept on the group for derived views.
	Attrs map[string]string
}

// Classifier derives the grouping descriptor of a payload. It should return a
// zero Descriptor for payloads it does not understand.
type Classifier func(category Category, payload any) Descriptor

// KeyFor hashes the defining fields of a category into a GroupKey. Missing or
// empty fields yield the category's unknown key.
func KeyFor(category Category, fields ...string) GroupKey {
	if len(fields) == 0 {
		return UnknownKey(category)
	}
	for _, f := range fields {
		if f == "" {
			return UnknownKey(category)
		}
	}
	sum := xxhash.Sum64String(strings.Join(fields, fieldSeparator))
	return GroupKey(fmt.Sprintf("%s:%016x", category, sum))
}

// UnknownKey is the fallback key for events whose defining fields are missing.
func UnknownKey(category Category) GroupKey {
	return GroupKey(string(category) + ":" + unknownSuffix)
}
