package rtime

import (
	"errors"
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		kind     string
		wantName string
		wantErr  bool
	}{
		{kind: "", wantName: KindNull},
		{kind: "null", wantName: KindNull},
		{kind: "krokhin", wantName: KindKrokhin},
		{kind: "palmbald", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			p, err := New(tt.kind)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownPredictor) {
					t.Errorf("New(%q) error = %v, want ErrUnknownPredictor", tt.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.kind, err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %s, want %s", p.Name(), tt.wantName)
			}
		})
	}
}

func TestKrokhinPredict(t *testing.T) {
	k := Krokhin{}

	// Ten residues: no length correction.
	got := k.Predict("GGGGGGGGGG")
	want := -0.9*10 + -0.9*(0.42+0.22+0.05)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Predict(G10) = %v, want %v", got, want)
	}

	if hydrophobic, hydrophilic := k.Predict("LLWFLLWFLL"), k.Predict("KKDDKKDDKK"); hydrophobic <= hydrophilic {
		t.Errorf("hydrophobic %v not above hydrophilic %v", hydrophobic, hydrophilic)
	}

	if (Null{}).Predict("LLWFLLWFLL") != 0 {
		t.Error("Null predictor returned non-zero")
	}
}

type fixedPredictor map[string]float64

func (fixedPredictor) Name() string              { return "fixed" }
func (f fixedPredictor) Predict(s string) float64 { return f[s] }

func TestMaxDiff(t *testing.T) {
	p := fixedPredictor{"A": 10, "B": 12, "C": 3}

	tests := []struct {
		name string
		seqs []string
		want float64
	}{
		{name: "empty", seqs: nil, want: 0},
		{name: "single", seqs: []string{"A"}, want: 0},
		{name: "increasing", seqs: []string{"A", "B"}, want: 2},
		{name: "largest magnitude is negative", seqs: []string{"A", "B", "C"}, want: -9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxDiff(p, tt.seqs); got != tt.want {
				t.Errorf("MaxDiff() = %v, want %v", got, tt.want)
			}
		})
	}
}
