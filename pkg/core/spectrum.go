// Package core provides the spectrum, peptide and chemistry models shared by
// the preprocessing, scoring and output packages.
package core

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Spectrum is one MS2 fragmentation spectrum as read from an input file.
// Readers hand out fresh values; downstream stages copy before changing peaks.
type Spectrum struct {
	FirstScan   int
	LastScan    int // equal to FirstScan for single-scan spectra
	PrecursorMZ float64
	Peaks       []Peak // ascending m/z

	Charges       []int    // candidate precursor charges from Z lines
	RetentionTime *float64 // minutes

	SourceFile string
}

// Peak is a single m/z, intensity pair.
type Peak struct {
	MZ        float64
	Intensity float64
}

// ValidationError reports one invalid field of a spectrum.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate reports every problem that would keep the spectrum out of
// preprocessing. The returned error joins one *ValidationError per problem.
func (s *Spectrum) Validate() error {
	var problems []error
	add := func(field, format string, args ...any) {
		problems = append(problems, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case s.FirstScan < 0:
		add("scan", "first scan %d is negative", s.FirstScan)
	case s.LastScan < s.FirstScan:
		add("scan", "last scan %d precedes first scan %d", s.LastScan, s.FirstScan)
	}
	if !finite(s.PrecursorMZ) || s.PrecursorMZ <= 0 {
		add("precursor", "m/z %v is not positive", s.PrecursorMZ)
	}
	for _, z := range s.Charges {
		if z <= 0 {
			add("charge", "%d is not positive", z)
		}
	}

	for i, p := range s.Peaks {
		field := fmt.Sprintf("peak[%d]", i)
		if !finite(p.MZ) || p.MZ <= 0 {
			add(field, "m/z %v is not positive", p.MZ)
		}
		if !finite(p.Intensity) || p.Intensity < 0 {
			add(field, "intensity %v is negative or not finite", p.Intensity)
		}
	}
	if !s.ArePeaksSorted() {
		add("peaks", "not in ascending m/z order")
	}

	return errors.Join(problems...)
}

func byMZ(a, b Peak) int {
	return cmp.Compare(a.MZ, b.MZ)
}

// ArePeaksSorted reports whether peaks are in ascending m/z order.
func (s *Spectrum) ArePeaksSorted() bool {
	return slices.IsSortedFunc(s.Peaks, byMZ)
}

// SortPeaks orders peaks by ascending m/z, keeping the input order of
// equal m/z values.
func (s *Spectrum) SortPeaks() {
	slices.SortStableFunc(s.Peaks, byMZ)
}

// MaxMZ returns the largest peak m/z, or 0 without peaks.
func (s *Spectrum) MaxMZ() float64 {
	if len(s.Peaks) == 0 {
		return 0
	}
	return slices.MaxFunc(s.Peaks, byMZ).MZ
}

// TotalIonCurrent returns the summed peak intensity.
func (s *Spectrum) TotalIonCurrent() float64 {
	var tic float64
	for _, p := range s.Peaks {
		tic += p.Intensity
	}
	return tic
}

// NeutralMass returns the uncharged precursor mass assuming the given charge.
func (s *Spectrum) NeutralMass(charge int) float64 {
	return float64(charge) * (s.PrecursorMZ - ProtonMass)
}

// SinglyChargedMass returns the M+H value written on MS2 Z lines.
func (s *Spectrum) SinglyChargedMass(charge int) float64 {
	return s.NeutralMass(charge) + ProtonMass
}

// Name identifies a spectrum under one charge as "scan.charge".
func (s *Spectrum) Name(charge int) string {
	return fmt.Sprintf("%d.%d", s.FirstScan, charge)
}
