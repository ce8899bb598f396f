package core

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validSpectrum() *Spectrum {
	return &Spectrum{
		FirstScan:   10,
		LastScan:    10,
		PrecursorMZ: 400.5,
		Charges:     []int{2, 3},
		Peaks: []Peak{
			{MZ: 100, Intensity: 1000},
			{MZ: 200, Intensity: 2000},
		},
	}
}

func TestSpectrumValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *Spectrum)
		wantField string
	}{
		{name: "valid", mutate: func(*Spectrum) {}},
		{name: "no peaks", mutate: func(s *Spectrum) { s.Peaks = nil }},
		{name: "no charges", mutate: func(s *Spectrum) { s.Charges = nil }},
		{name: "negative scan", mutate: func(s *Spectrum) { s.FirstScan = -1 }, wantField: "scan"},
		{name: "last scan first", mutate: func(s *Spectrum) { s.LastScan = 9 }, wantField: "scan"},
		{name: "zero precursor", mutate: func(s *Spectrum) { s.PrecursorMZ = 0 }, wantField: "precursor"},
		{name: "infinite precursor", mutate: func(s *Spectrum) { s.PrecursorMZ = math.Inf(1) }, wantField: "precursor"},
		{name: "zero charge", mutate: func(s *Spectrum) { s.Charges = []int{2, 0} }, wantField: "charge"},
		{name: "NaN m/z", mutate: func(s *Spectrum) { s.Peaks[1].MZ = math.NaN() }, wantField: "peak[1]"},
		{name: "negative intensity", mutate: func(s *Spectrum) { s.Peaks[0].Intensity = -3 }, wantField: "peak[0]"},
		{
			name:      "unsorted",
			mutate:    func(s *Spectrum) { s.Peaks[0], s.Peaks[1] = s.Peaks[1], s.Peaks[0] },
			wantField: "peaks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpectrum()
			tt.mutate(spec)

			err := spec.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestSpectrumValidateReportsEveryProblem(t *testing.T) {
	spec := &Spectrum{
		FirstScan: 3,
		LastScan:  3,
		Charges:   []int{-1},
		Peaks:     []Peak{{MZ: 5, Intensity: 1}, {MZ: 4, Intensity: 1}},
	}
	err := spec.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("Validate() error %T does not wrap multiple errors", err)
	}
	var fields []string
	for _, e := range joined.Unwrap() {
		fields = append(fields, e.(*ValidationError).Field)
	}
	if diff := cmp.Diff([]string{"precursor", "charge", "peaks"}, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestSortPeaks(t *testing.T) {
	spec := &Spectrum{Peaks: []Peak{
		{MZ: 300, Intensity: 100},
		{MZ: 100, Intensity: 200},
		{MZ: 200, Intensity: 150},
		{MZ: 100, Intensity: 7},
	}}
	if spec.ArePeaksSorted() {
		t.Fatal("ArePeaksSorted() = true before sorting")
	}

	spec.SortPeaks()

	want := []Peak{
		{MZ: 100, Intensity: 200},
		{MZ: 100, Intensity: 7},
		{MZ: 200, Intensity: 150},
		{MZ: 300, Intensity: 100},
	}
	if diff := cmp.Diff(want, spec.Peaks); diff != "" {
		t.Errorf("SortPeaks() mismatch (-want +got):\n%s", diff)
	}
	if !spec.ArePeaksSorted() {
		t.Error("ArePeaksSorted() = false after sorting")
	}
}

func TestPeakSummaries(t *testing.T) {
	spec := validSpectrum()
	if got := spec.MaxMZ(); got != 200 {
		t.Errorf("MaxMZ() = %v, want 200", got)
	}
	if got := spec.TotalIonCurrent(); got != 3000 {
		t.Errorf("TotalIonCurrent() = %v, want 3000", got)
	}

	empty := &Spectrum{}
	if empty.MaxMZ() != 0 || empty.TotalIonCurrent() != 0 {
		t.Errorf("empty spectrum summaries = %v, %v, want 0, 0", empty.MaxMZ(), empty.TotalIonCurrent())
	}
}

func TestPrecursorMasses(t *testing.T) {
	spec := &Spectrum{FirstScan: 42, PrecursorMZ: 500}

	tests := []struct {
		charge      int
		wantNeutral float64
		wantMH      float64
		wantName    string
	}{
		{charge: 1, wantNeutral: 500 - ProtonMass, wantMH: 500, wantName: "42.1"},
		{charge: 2, wantNeutral: 2 * (500 - ProtonMass), wantMH: 1000 - ProtonMass, wantName: "42.2"},
		{charge: 3, wantNeutral: 3 * (500 - ProtonMass), wantMH: 1500 - 2*ProtonMass, wantName: "42.3"},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			if got := spec.NeutralMass(tt.charge); math.Abs(got-tt.wantNeutral) > 1e-9 {
				t.Errorf("NeutralMass(%d) = %.6f, want %.6f", tt.charge, got, tt.wantNeutral)
			}
			if got := spec.SinglyChargedMass(tt.charge); math.Abs(got-tt.wantMH) > 1e-9 {
				t.Errorf("SinglyChargedMass(%d) = %.6f, want %.6f", tt.charge, got, tt.wantMH)
			}
			if got := spec.Name(tt.charge); got != tt.wantName {
				t.Errorf("Name(%d) = %q, want %q", tt.charge, got, tt.wantName)
			}
		})
	}
}
