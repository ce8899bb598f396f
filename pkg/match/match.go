// Package match represents peptide-spectrum matches, the per-spectrum
// collections that own them, and the ranking rules applied to those
// collections.
package match

import (
	"errors"
	"fmt"
	"math"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
)

// NotRanked is the rank of a match that does not hold the ranked score.
const NotRanked = 0

// ErrScoreNotComputed is returned when reading a score that was never set.
var ErrScoreNotComputed = errors.New("score not computed")

// Match is one (peptide, spectrum, charge) candidate. Scores and ranks are
// sparse: only requested score types are present.
type Match struct {
	Peptide  *core.Peptide
	Spectrum *core.Spectrum
	Charge   int
	Decoy    bool

	DeltaCn          float64
	LnDeltaCn        float64
	LnExperimentSize float64
	BestPerPeptide   bool

	ByIonsMatched  int
	ByIonsPossible int

	scores map[ScoreType]float64
	ranks  map[ScoreType]int
}

// New returns an unscored match. The decoy flag follows the peptide.
func New(p *core.Peptide, spec *core.Spectrum, charge int) *Match {
	return &Match{
		Peptide:  p,
		Spectrum: spec,
		Charge:   charge,
		Decoy:    p != nil && p.Decoy,
		scores:   make(map[ScoreType]float64),
		ranks:    make(map[ScoreType]int),
	}
}

// SetScore stores a score, replacing any earlier value of the same type.
func (m *Match) SetScore(t ScoreType, v float64) {
	if m.scores == nil {
		m.scores = make(map[ScoreType]float64)
	}
	m.scores[t] = v
}

// Score returns the stored score of type t.
func (m *Match) Score(t ScoreType) (float64, error) {
	v, ok := m.scores[t]
	if !ok {
		return 0, fmt.Errorf("%w: %s for %s", ErrScoreNotComputed, t, m)
	}
	return v, nil
}

// HasScore reports whether a score of type t has been set.
func (m *Match) HasScore(t ScoreType) bool {
	_, ok := m.scores[t]
	return ok
}

// Rank returns the rank for t, or NotRanked.
func (m *Match) Rank(t ScoreType) int {
	return m.ranks[t]
}

// SetRank stores a rank read back from a result file.
func (m *Match) SetRank(t ScoreType, rank int) {
	if m.ranks == nil {
		m.ranks = make(map[ScoreType]int)
	}
	if rank == NotRanked {
		delete(m.ranks, t)
		return
	}
	m.ranks[t] = rank
}

// Scan returns the first scan of the matched spectrum.
func (m *Match) Scan() int {
	if m.Spectrum == nil {
		return 0
	}
	return m.Spectrum.FirstScan
}

// SpectrumNeutralMass returns the precursor neutral mass under the match charge.
func (m *Match) SpectrumNeutralMass() float64 {
	if m.Spectrum == nil {
		return 0
	}
	return m.Spectrum.NeutralMass(m.Charge)
}

// PeptideMass returns the neutral peptide mass including modifications.
func (m *Match) PeptideMass() float64 {
	if m.Peptide == nil {
		return 0
	}
	return m.Peptide.NeutralMass()
}

// Sequence returns the unmodified peptide sequence.
func (m *Match) Sequence() string {
	if m.Peptide == nil {
		return ""
	}
	return m.Peptide.Sequence
}

// ByIonFraction returns the fraction of b/y ions matched during Sp scoring.
func (m *Match) ByIonFraction() float64 {
	if m.ByIonsPossible == 0 {
		return 0
	}
	return float64(m.ByIonsMatched) / float64(m.ByIonsPossible)
}

// SetDeltaCn stores delta-cn and its log. Non-positive deltas have a log of 0.
func (m *Match) SetDeltaCn(delta float64) {
	m.DeltaCn = delta
	m.LnDeltaCn = 0
	if delta > 0 {
		m.LnDeltaCn = math.Log(delta)
	}
}

func (m *Match) String() string {
	return fmt.Sprintf("%s scan %d charge %d", m.Sequence(), m.Scan(), m.Charge)
}
