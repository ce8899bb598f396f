package ms2

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
)

const sampleMS2 = `H	CreationDate	2024-01-01
H	Extractor	test
S	000010	000010	500.25
I	RTime	12.5
Z	2	999.49
Z	3	1498.73
100.1 20.0
200.2 35.5
S	11	12	650.75
Z	2	1300.49
150.0 10
`

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(sampleMS2), "sample.ms2")

	var spectra []*core.Spectrum
	for r.Next() {
		spectra = append(spectra, r.Spectrum())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	rt := 12.5
	want := []*core.Spectrum{
		{
			FirstScan: 10, LastScan: 10, PrecursorMZ: 500.25,
			Charges:       []int{2, 3},
			RetentionTime: &rt,
			Peaks:         []core.Peak{{MZ: 100.1, Intensity: 20}, {MZ: 200.2, Intensity: 35.5}},
			SourceFile:    "sample.ms2",
		},
		{
			FirstScan: 11, LastScan: 12, PrecursorMZ: 650.75,
			Charges:    []int{2},
			Peaks:      []core.Peak{{MZ: 150, Intensity: 10}},
			SourceFile: "sample.ms2",
		},
	}
	if diff := cmp.Diff(want, spectra); diff != "" {
		t.Errorf("spectra mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"CreationDate\t2024-01-01", "Extractor\ttest"}, r.Headers()); diff != "" {
		t.Errorf("Headers() mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "peak before scan", input: "100.0 5\n"},
		{name: "bad scan line", input: "S\t1\t1\n"},
		{name: "bad charge", input: "S\t1\t1\t500\nZ\tx\t999\n"},
		{name: "bad peak", input: "S\t1\t1\t500\n100.0 abc\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input), "")
			for r.Next() {
			}
			if r.Err() == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestReaderEmpty(t *testing.T) {
	r := NewReader(strings.NewReader("H\tonly header\n"), "")
	if r.Next() {
		t.Fatal("Next() = true for file without spectra")
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}
