package xcorr

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
)

// ScoreScale normalizes the raw dot product into the conventional XCorr range.
const ScoreScale = 10000.0

// Score returns the XCorr of a theoretical array against a cross-correlation
// transformed observed array.
func Score(theoretical, observed []float64) (float64, error) {
	if len(theoretical) != len(observed) {
		return 0, fmt.Errorf("%w: theoretical %d vs observed %d", ErrLengthMismatch, len(theoretical), len(observed))
	}
	return floats.Dot(theoretical, observed) / ScoreScale, nil
}

// ScorePeptide builds the theoretical array for a peptide and scores it
// against the transformed observed array.
func ScorePeptide(p *core.Peptide, charge int, observed []float64) (float64, error) {
	return Score(TheoreticalArray(p, charge, len(observed)), observed)
}

// Sp scoring constants.
const (
	SpConsecutiveBonus = 0.075
	SpMaxIntensity     = 100.0
)

// SpResult holds a preliminary Sp score and its ion match counts.
type SpResult struct {
	Score    float64
	Matched  int
	Possible int
}

// MatchedFraction returns Matched/Possible, or 0 with no possible ions.
func (r SpResult) MatchedFraction() float64 {
	if r.Possible == 0 {
		return 0
	}
	return float64(r.Matched) / float64(r.Possible)
}

// ScoreSp computes the preliminary Sp score of a peptide against the raw
// spectrum. Peaks are square-root scaled and normalized to SpMaxIntensity
// before matching b and y ions; runs of consecutive matched ions earn
// SpConsecutiveBonus each.
func ScoreSp(spec *core.Spectrum, p *core.Peptide, charge int) SpResult {
	observed := make(map[int]float64, len(spec.Peaks))
	maxIntensity := 0.0
	for _, peak := range spec.Peaks {
		v := math.Sqrt(peak.Intensity)
		bin := core.MZToBin(peak.MZ)
		if v > observed[bin] {
			observed[bin] = v
		}
		if v > maxIntensity {
			maxIntensity = v
		}
	}

	ions := IonSeries(p, charge)
	result := SpResult{Possible: len(ions)}
	if maxIntensity == 0 || len(ions) == 0 {
		return result
	}

	sum := 0.0
	consecutive := 0
	var prev *Ion
	prevMatched := false
	for i := range ions {
		ion := &ions[i]
		v, ok := observed[core.MZToBin(ion.MZ)]
		matched := ok && v > 0
		if matched {
			result.Matched++
			sum += v / maxIntensity * SpMaxIntensity
			if prevMatched && prev.Type == ion.Type && prev.Charge == ion.Charge && prev.Position+1 == ion.Position {
				consecutive++
			}
		}
		prev, prevMatched = ion, matched
	}

	result.Score = sum * float64(result.Matched) * (1 + SpConsecutiveBonus*float64(consecutive)) / float64(result.Possible)
	return result
}
