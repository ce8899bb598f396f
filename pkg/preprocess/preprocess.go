// Package preprocess turns a raw peak list into the fixed-resolution intensity
// array used for XCorr scoring.
//
// The pipeline runs these stages strictly in order, optionally stopping after
// any of them:
//
//	discretize        peaks -> integer m/z bins, colliding peaks keep the max
//	remove-precursor  zero a window around the precursor and its charge-reduced forms
//	square-root       compress dynamic range
//	remove-grass      zero bins below a noise floor
//	ten-bin           normalize each of ten regions to a fixed ceiling
//	xcorr             subtract the windowed local mean (see package xcorr)
package preprocess

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/hsiaoyi0504/crux-toolkit/internal/logging"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/xcorr"
)

var (
	// ErrInvalidStage is returned for an unknown stop-stage name.
	ErrInvalidStage = errors.New("invalid preprocessing stage")
	// ErrInvalidCharge is returned for a non-positive charge hypothesis.
	ErrInvalidCharge = errors.New("invalid charge")
)

// Stage identifies one preprocessing step.
type Stage int

const (
	StageDiscretize Stage = iota
	StageRemovePrecursor
	StageSquareRoot
	StageRemoveGrass
	StageTenBin
	StageXCorr
)

var stageNames = [...]string{
	StageDiscretize:      "discretize",
	StageRemovePrecursor: "remove-precursor",
	StageSquareRoot:      "square-root",
	StageRemoveGrass:     "remove-grass",
	StageTenBin:          "ten-bin",
	StageXCorr:           "xcorr",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageNames returns every valid stop-stage name in pipeline order.
func StageNames() []string {
	return append([]string(nil), stageNames[:]...)
}

// ParseStage maps a stop-after name onto its Stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w '%s': must be one of %s", ErrInvalidStage, name, strings.Join(stageNames[:], ", "))
}

// Tuning constants for the stages.
const (
	PrecursorWindowMZ = 15.0 // half-width of the zeroed precursor window, in m/z
	GrassFraction     = 0.05 // noise floor as a fraction of the array maximum
	NumRegions        = 10
	RegionCeiling     = 50.0
)

// Preprocessor runs the stage pipeline with a configured cross-correlation
// backend.
type Preprocessor struct {
	backend   xcorr.Backend
	maxOffset int
	log       *slog.Logger
}

// New returns a Preprocessor using the given backend for the xcorr stage. A
// nil backend selects the sequential reference implementation.
func New(backend xcorr.Backend) *Preprocessor {
	if backend == nil {
		backend = xcorr.Sequential{}
	}
	return &Preprocessor{backend: backend, maxOffset: xcorr.MaxOffset, log: logging.New("preprocess")}
}

// Preprocess is a convenience wrapper using the sequential backend.
func Preprocess(spec *core.Spectrum, charge int, stop Stage) ([]float64, int, error) {
	return New(nil).Preprocess(spec, charge, stop)
}

// ArrayLength returns the intensity array length for a spectrum: enough bins
// for the highest peak plus the cross-correlation margin.
func ArrayLength(spec *core.Spectrum) int {
	return int(math.Ceil(spec.MaxMZ()/core.BinWidth)) + xcorr.MaxOffset
}

// Preprocess builds a fresh intensity array for one (spectrum, charge) pair,
// running every stage up to and including stop. It returns the array and its
// bin count.
func (p *Preprocessor) Preprocess(spec *core.Spectrum, charge int, stop Stage) ([]float64, int, error) {
	if stop < StageDiscretize || stop > StageXCorr {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidStage, stop)
	}
	if charge <= 0 {
		return nil, 0, fmt.Errorf("%w: %d for scan %d", ErrInvalidCharge, charge, spec.FirstScan)
	}

	intensities := Discretize(spec.Peaks, ArrayLength(spec))

	for stage := StageRemovePrecursor; stage <= stop; stage++ {
		switch stage {
		case StageRemovePrecursor:
			RemovePrecursor(intensities, spec.PrecursorMZ, charge)
		case StageSquareRoot:
			SquareRoot(intensities)
		case StageRemoveGrass:
			RemoveGrass(intensities)
		case StageTenBin:
			NormalizeRegions(intensities)
		case StageXCorr:
			transformed, err := p.backend.CrossCorrelate(intensities, p.maxOffset)
			if err != nil {
				return nil, 0, fmt.Errorf("cross-correlation for scan %d charge %d: %w", spec.FirstScan, charge, err)
			}
			intensities = transformed
		}
	}

	p.log.Debug("processed spectrum",
		"scan", spec.FirstScan, "charge", charge, "stop", stop.String(), "bins", len(intensities))

	return intensities, len(intensities), nil
}

// Discretize maps peaks into a zero-filled array of the given length. Peaks
// sharing a bin keep the maximum intensity.
func Discretize(peaks []core.Peak, length int) []float64 {
	intensities := make([]float64, length)
	for _, peak := range peaks {
		bin := core.MZToBin(peak.MZ)
		if bin < 0 || bin >= length {
			continue
		}
		if peak.Intensity > intensities[bin] {
			intensities[bin] = peak.Intensity
		}
	}
	return intensities
}

// RemovePrecursor zeroes the bins within PrecursorWindowMZ of the precursor
// and of every charge-reduced precursor position.
func RemovePrecursor(intensities []float64, precursorMZ float64, charge int) {
	neutral := (precursorMZ - core.ProtonMass) * float64(charge)
	for z := 1; z <= charge; z++ {
		mz := (neutral + float64(z)*core.ProtonMass) / float64(z)
		lo := core.MZToBin(mz - PrecursorWindowMZ)
		hi := core.MZToBin(mz + PrecursorWindowMZ)
		if lo < 0 {
			lo = 0
		}
		if hi >= len(intensities) {
			hi = len(intensities) - 1
		}
		for bin := lo; bin <= hi; bin++ {
			intensities[bin] = 0
		}
	}
}

// SquareRoot replaces every intensity with its square root.
func SquareRoot(intensities []float64) {
	for i, v := range intensities {
		intensities[i] = math.Sqrt(v)
	}
}

// RemoveGrass zeroes every bin below GrassFraction of the array maximum.
func RemoveGrass(intensities []float64) {
	if len(intensities) == 0 {
		return
	}
	floor := GrassFraction * floats.Max(intensities)
	for i, v := range intensities {
		if v < floor {
			intensities[i] = 0
		}
	}
}

// NormalizeRegions splits the populated part of the array into NumRegions
// equal-width regions and scales each so its maximum equals RegionCeiling.
func NormalizeRegions(intensities []float64) {
	highest := -1
	for i := len(intensities) - 1; i >= 0; i-- {
		if intensities[i] > 0 {
			highest = i
			break
		}
	}
	if highest < 0 {
		return
	}

	width := highest/NumRegions + 1
	for start := 0; start <= highest; start += width {
		end := start + width
		if end > len(intensities) {
			end = len(intensities)
		}
		region := intensities[start:end]
		regionMax := floats.Max(region)
		if regionMax > 0 {
			floats.Scale(RegionCeiling/regionMax, region)
		}
	}
}
