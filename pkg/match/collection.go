package match

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrScoreTypeNotRegistered is returned when ranking by a score type the
	// collection was never told to expect.
	ErrScoreTypeNotRegistered = errors.New("score type not registered")
	// ErrCollectionFull is returned by Add once the capacity is reached.
	ErrCollectionFull = errors.New("match collection full")
)

// Collection owns the matches produced for one spectrum, or for many spectra
// in aggregate mode, under one target or decoy label. Callers borrow matches
// for the duration of a call and never keep them past the collection.
type Collection struct {
	matches        []*Match
	registered     map[ScoreType]bool
	capacity       int
	experimentSize int
}

// NewCollection returns an empty collection. A capacity of 0 is unbounded.
func NewCollection(capacity int) *Collection {
	return &Collection{
		registered: make(map[ScoreType]bool),
		capacity:   capacity,
	}
}

// Add appends a match.
func (c *Collection) Add(m *Match) error {
	if c.capacity > 0 && len(c.matches) >= c.capacity {
		return fmt.Errorf("%w: capacity %d", ErrCollectionFull, c.capacity)
	}
	c.matches = append(c.matches, m)
	return nil
}

// Len returns the number of matches held.
func (c *Collection) Len() int { return len(c.matches) }

// Matches returns the matches in insertion order. The slice is a copy; the
// matches are not.
func (c *Collection) Matches() []*Match {
	return append([]*Match(nil), c.matches...)
}

// RegisterScores declares the score types this collection will be ranked by.
func (c *Collection) RegisterScores(types ...ScoreType) {
	for _, t := range types {
		c.registered[t] = true
	}
}

// IsRegistered reports whether t was registered.
func (c *Collection) IsRegistered(t ScoreType) bool {
	return c.registered[t]
}

// ScoredTypes returns the registered score types in declaration order.
func (c *Collection) ScoredTypes() []ScoreType {
	var types []ScoreType
	for _, t := range ScoreTypes() {
		if c.registered[t] {
			types = append(types, t)
		}
	}
	return types
}

// SetExperimentSize records how many candidates were scored for the
// spectrum, which may exceed the number of matches kept.
func (c *Collection) SetExperimentSize(n int) {
	c.experimentSize = n
	ln := 0.0
	if n > 0 {
		ln = math.Log(float64(n))
	}
	for _, m := range c.matches {
		m.LnExperimentSize = ln
	}
}

// ExperimentSize returns the recorded experiment size, defaulting to the
// number of matches held.
func (c *Collection) ExperimentSize() int {
	if c.experimentSize > 0 {
		return c.experimentSize
	}
	return len(c.matches)
}
