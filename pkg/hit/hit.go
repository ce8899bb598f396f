// Package hit aggregates scored matches into per-peptide best scores and
// per-protein hits.
package hit

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
)

// DefaultCapacity bounds a hit collection when the caller passes 0.
const DefaultCapacity = 100000

// ErrTooManyHits is returned by Add once a collection is full.
var ErrTooManyHits = errors.New("too many hits")

// PeptideScore is the best score of one peptide sequence.
type PeptideScore struct {
	Sequence   string
	ProteinIDs []string
	Score      float64
}

// Hit is one protein with the summed best scores of its peptides.
type Hit struct {
	ProteinID string
	Score     float64
	Peptides  []string
}

// Collection holds hits up to a fixed capacity.
type Collection struct {
	hits     []*Hit
	capacity int
}

// NewCollection returns an empty collection. A capacity of 0 selects
// DefaultCapacity.
func NewCollection(capacity int) *Collection {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Collection{capacity: capacity}
}

// Add appends a hit.
func (c *Collection) Add(h *Hit) error {
	if len(c.hits) >= c.capacity {
		return fmt.Errorf("%w: capacity %d reached adding %s", ErrTooManyHits, c.capacity, h.ProteinID)
	}
	c.hits = append(c.hits, h)
	return nil
}

// Len returns the number of hits.
func (c *Collection) Len() int { return len(c.hits) }

// Ranked returns the hits by descending score, ties by protein id.
func (c *Collection) Ranked() []*Hit {
	ranked := append([]*Hit(nil), c.hits...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProteinID < ranked[j].ProteinID
	})
	return ranked
}

// BestPerPeptide returns the best score by t of every unmodified peptide
// sequence in the collection.
func BestPerPeptide(c *match.Collection, t match.ScoreType) (map[string]float64, error) {
	peptides, err := bestPeptides(c, t)
	if err != nil {
		return nil, err
	}
	best := make(map[string]float64, len(peptides))
	for seq, ps := range peptides {
		best[seq] = ps.Score
	}
	return best, nil
}

// RankedPeptides returns the best score per peptide, best first, ties by
// sequence.
func RankedPeptides(c *match.Collection, t match.ScoreType) ([]PeptideScore, error) {
	peptides, err := bestPeptides(c, t)
	if err != nil {
		return nil, err
	}
	ranked := make([]PeptideScore, 0, len(peptides))
	for _, ps := range peptides {
		ranked = append(ranked, *ps)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			if t.LargerIsBetter() {
				return ranked[i].Score > ranked[j].Score
			}
			return ranked[i].Score < ranked[j].Score
		}
		return ranked[i].Sequence < ranked[j].Sequence
	})
	return ranked, nil
}

// FromMatches builds protein hits: each protein scores the sum of the best
// scores of the peptides mapped to it.
func FromMatches(c *match.Collection, t match.ScoreType, capacity int) (*Collection, error) {
	peptides, err := bestPeptides(c, t)
	if err != nil {
		return nil, err
	}

	byProtein := make(map[string]*Hit)
	for seq, ps := range peptides {
		for _, id := range ps.ProteinIDs {
			h, ok := byProtein[id]
			if !ok {
				h = &Hit{ProteinID: id}
				byProtein[id] = h
			}
			h.Score += ps.Score
			h.Peptides = append(h.Peptides, seq)
		}
	}

	ids := make([]string, 0, len(byProtein))
	for id := range byProtein {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	hits := NewCollection(capacity)
	for _, id := range ids {
		h := byProtein[id]
		sort.Strings(h.Peptides)
		if err := hits.Add(h); err != nil {
			return nil, err
		}
	}
	return hits, nil
}

func bestPeptides(c *match.Collection, t match.ScoreType) (map[string]*PeptideScore, error) {
	sorted, err := c.Sorted(t)
	if err != nil {
		return nil, err
	}
	peptides := make(map[string]*PeptideScore)
	for _, m := range sorted {
		seq := m.Sequence()
		if _, ok := peptides[seq]; ok {
			continue
		}
		s, err := m.Score(t)
		if err != nil {
			return nil, err
		}
		var proteins []string
		if m.Peptide != nil {
			proteins = uniqueSorted(m.Peptide.ProteinIDs)
		}
		peptides[seq] = &PeptideScore{Sequence: seq, ProteinIDs: proteins, Score: s}
	}
	return peptides, nil
}

func uniqueSorted(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
