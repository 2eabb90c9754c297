package behavior

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Errors returned by weighted selection.
var (
	// ErrEmptySet is returned when a weighted set has no selectable items.
	ErrEmptySet = errors.New("behavior: no items to select from")
	// ErrInvalidWeight is returned when an item has a negative weight.
	ErrInvalidWeight = errors.New("behavior: invalid weight")
)

// WeightedItem is a named item with a static positive selection weight.
type WeightedItem struct {
	Name   string
	Weight int
}

// WeightedSet selects items with probability proportional to their weights.
// Items with zero weight are never selected. The set is immutable after
// construction and safe for concurrent use.
type WeightedSet struct {
	entries []weightedEntry
	total   int
}

// weightedEntry pairs an item with its cumulative weight for binary search.
type weightedEntry struct {
	name             string
	cumulativeWeight int
}

// NewWeightedSet builds a weighted set from items, preserving their order.
func NewWeightedSet(items []WeightedItem) (*WeightedSet, error) {
	set := &WeightedSet{}
	for _, item := range items {
		if item.Weight < 0 {
			return nil, fmt.Errorf("%w: %s has weight %d", ErrInvalidWeight, item.Name, item.Weight)
		}
		if item.Weight == 0 {
			continue
		}
		set.total += item.Weight
		set.entries = append(set.entries, weightedEntry{
			name:             item.Name,
			cumulativeWeight: set.total,
		})
	}

	if len(set.entries) == 0 {
		return nil, ErrEmptySet
	}
	return set, nil
}

// Pick selects one item name by weighted random selection.
func (s *WeightedSet) Pick() string {
	if len(s.entries) == 1 {
		return s.entries[0].name
	}

	target := randomInt(s.total)

	// Binary search for the first entry whose cumulative weight exceeds
	// the target.
	low, high := 0, len(s.entries)-1
	for low < high {
		mid := (low + high) / 2
		if s.entries[mid].cumulativeWeight <= target {
			low = mid + 1
		} else {
			high = mid
		}
	}
	return s.entries[low].name
}

// Names returns the selectable item names in construction order.
func (s *WeightedSet) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// TotalWeight returns the sum of selectable weights.
func (s *WeightedSet) TotalWeight() int {
	return s.total
}

// randomInt returns a uniform random int in [0, n).
func randomInt(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
