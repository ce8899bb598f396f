package match

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Compare orders two matches by score type t: better score first, then
// unmodified sequence, modified sequence, charge and scan. Both matches must
// hold t. NaN scores rank last. It returns a negative value when a ranks
// ahead of b.
func Compare(a, b *Match, t ScoreType) int {
	sa, sb := a.scores[t], b.scores[t]
	if na, nb := math.IsNaN(sa), math.IsNaN(sb); na || nb {
		switch {
		case na && !nb:
			return 1
		case nb && !na:
			return -1
		}
	} else if sa != sb {
		better := sa > sb
		if !t.LargerIsBetter() {
			better = sa < sb
		}
		if better {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Sequence(), b.Sequence()); c != 0 {
		return c
	}
	if c := strings.Compare(modSequence(a), modSequence(b)); c != 0 {
		return c
	}
	if a.Charge != b.Charge {
		return a.Charge - b.Charge
	}
	return a.Scan() - b.Scan()
}

func modSequence(m *Match) string {
	if m.Peptide == nil {
		return ""
	}
	return m.Peptide.ModSequenceWithMasses(false)
}

// Sorted returns the matches holding t, best first.
func (c *Collection) Sorted(t ScoreType) ([]*Match, error) {
	if !c.registered[t] {
		return nil, fmt.Errorf("%w: %s", ErrScoreTypeNotRegistered, t)
	}
	scored := make([]*Match, 0, len(c.matches))
	for _, m := range c.matches {
		if m.HasScore(t) {
			scored = append(scored, m)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return Compare(scored[i], scored[j], t) < 0
	})
	return scored, nil
}

// Rank assigns ranks 1..k by t to the k matches holding it. Matches without
// the score are reset to NotRanked. An empty ranking is not an error.
func (c *Collection) Rank(t ScoreType) error {
	sorted, err := c.Sorted(t)
	if err != nil {
		return err
	}
	for _, m := range c.matches {
		m.SetRank(t, NotRanked)
	}
	for i, m := range sorted {
		m.SetRank(t, i+1)
	}
	return nil
}

// Top returns at most n of the best matches by t.
func (c *Collection) Top(t ScoreType, n int) ([]*Match, error) {
	sorted, err := c.Sorted(t)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted, nil
}

// ComputeDeltaCn sets each match's delta-cn to the relative drop from its
// score to the next best score by t. The last match and matches with a
// non-positive score get 0.
func (c *Collection) ComputeDeltaCn(t ScoreType) error {
	sorted, err := c.Sorted(t)
	if err != nil {
		return err
	}
	for i, m := range sorted {
		delta := 0.0
		s := m.scores[t]
		if i+1 < len(sorted) && s > 0 {
			next := sorted[i+1].scores[t]
			delta = (s - next) / s
			if !t.LargerIsBetter() {
				delta = -delta
			}
		}
		m.SetDeltaCn(delta)
	}
	return nil
}

// MarkBestPerPeptide flags, for every spectrum and unmodified sequence, the
// single best match by t. Other matches stay in the collection unflagged.
func (c *Collection) MarkBestPerPeptide(t ScoreType) error {
	sorted, err := c.Sorted(t)
	if err != nil {
		return err
	}
	for _, m := range c.matches {
		m.BestPerPeptide = false
	}

	type key struct {
		scan     int
		sequence string
	}
	seen := make(map[key]bool, len(sorted))
	for _, m := range sorted {
		k := key{scan: m.Scan(), sequence: m.Sequence()}
		if !seen[k] {
			seen[k] = true
			m.BestPerPeptide = true
		}
	}
	return nil
}
