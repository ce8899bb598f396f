// Package filter selects the peaks of a spectrum that take part in scoring.
package filter

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
)

// ErrTooFewPeaks is returned when fewer than MinPeaks peaks survive.
var ErrTooFewPeaks = errors.New("too few peaks")

// Config describes which peaks survive. Zero values disable a limit.
type Config struct {
	MinMZ           float64 // lowest m/z kept
	MaxMZ           float64 // highest m/z kept
	TopN            int     // most intense peaks kept
	IntensityCutoff float64 // percent of the base peak
	MinPeaks        int     // fewer survivors than this rejects the spectrum
}

// Apply returns a copy of spec holding only the selected peaks, sorted by
// m/z. Zero-intensity peaks are always dropped. The input is not modified.
func (c *Config) Apply(spec *core.Spectrum) (*core.Spectrum, error) {
	out := *spec
	out.Peaks = slices.DeleteFunc(slices.Clone(spec.Peaks), c.outOfRange)

	if c.IntensityCutoff > 0 && len(out.Peaks) > 0 {
		base := slices.MaxFunc(out.Peaks, byIntensity).Intensity
		floor := base * c.IntensityCutoff / 100
		out.Peaks = slices.DeleteFunc(out.Peaks, func(p core.Peak) bool {
			return p.Intensity < floor
		})
	}

	if c.TopN > 0 && len(out.Peaks) > c.TopN {
		// Equal intensities keep the lower m/z.
		slices.SortFunc(out.Peaks, func(a, b core.Peak) int {
			if d := byIntensity(b, a); d != 0 {
				return d
			}
			return cmp.Compare(a.MZ, b.MZ)
		})
		out.Peaks = out.Peaks[:c.TopN]
	}

	out.SortPeaks()

	if len(out.Peaks) < c.MinPeaks {
		return nil, fmt.Errorf("%w: scan %d has %d, need %d", ErrTooFewPeaks, spec.FirstScan, len(out.Peaks), c.MinPeaks)
	}
	return &out, nil
}

func (c *Config) outOfRange(p core.Peak) bool {
	switch {
	case p.Intensity <= 0:
		return true
	case c.MinMZ > 0 && p.MZ < c.MinMZ:
		return true
	case c.MaxMZ > 0 && p.MZ > c.MaxMZ:
		return true
	}
	return false
}

func byIntensity(a, b core.Peak) int {
	return cmp.Compare(a.Intensity, b.Intensity)
}
