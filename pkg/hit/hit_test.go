package hit

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
)

func buildCollection(t *testing.T) *match.Collection {
	t.Helper()
	c := match.NewCollection(0)
	c.RegisterScores(match.XCorr)

	rows := []struct {
		seq      string
		proteins []string
		scan     int
		score    float64
	}{
		{"PEPTIDEK", []string{"P1", "P2"}, 1, 3.0},
		{"PEPTIDEK", []string{"P1", "P2"}, 2, 4.0},
		{"LLLLK", []string{"P2"}, 3, 1.5},
		{"AAAR", []string{"P3"}, 4, 2.0},
	}
	for _, r := range rows {
		m := match.New(
			&core.Peptide{Sequence: r.seq, ProteinIDs: r.proteins},
			&core.Spectrum{FirstScan: r.scan},
			2,
		)
		m.SetScore(match.XCorr, r.score)
		if err := c.Add(m); err != nil {
			t.Fatal(err)
		}
	}
	// Unscored matches are ignored.
	if err := c.Add(match.New(&core.Peptide{Sequence: "GGGK", ProteinIDs: []string{"P4"}}, &core.Spectrum{FirstScan: 5}, 2)); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBestPerPeptide(t *testing.T) {
	got, err := BestPerPeptide(buildCollection(t), match.XCorr)
	if err != nil {
		t.Fatalf("BestPerPeptide() error = %v", err)
	}
	want := map[string]float64{"PEPTIDEK": 4.0, "LLLLK": 1.5, "AAAR": 2.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BestPerPeptide() mismatch (-want +got):\n%s", diff)
	}

	if _, err := BestPerPeptide(buildCollection(t), match.PValue); !errors.Is(err, match.ErrScoreTypeNotRegistered) {
		t.Errorf("error = %v, want ErrScoreTypeNotRegistered", err)
	}
}

func TestRankedPeptides(t *testing.T) {
	got, err := RankedPeptides(buildCollection(t), match.XCorr)
	if err != nil {
		t.Fatal(err)
	}
	want := []PeptideScore{
		{Sequence: "PEPTIDEK", ProteinIDs: []string{"P1", "P2"}, Score: 4.0},
		{Sequence: "AAAR", ProteinIDs: []string{"P3"}, Score: 2.0},
		{Sequence: "LLLLK", ProteinIDs: []string{"P2"}, Score: 1.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RankedPeptides() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromMatches(t *testing.T) {
	hits, err := FromMatches(buildCollection(t), match.XCorr, 0)
	if err != nil {
		t.Fatalf("FromMatches() error = %v", err)
	}
	want := []*Hit{
		{ProteinID: "P2", Score: 5.5, Peptides: []string{"LLLLK", "PEPTIDEK"}},
		{ProteinID: "P1", Score: 4.0, Peptides: []string{"PEPTIDEK"}},
		{ProteinID: "P3", Score: 2.0, Peptides: []string{"AAAR"}},
	}
	if diff := cmp.Diff(want, hits.Ranked()); diff != "" {
		t.Errorf("Ranked() mismatch (-want +got):\n%s", diff)
	}

	if _, err := FromMatches(buildCollection(t), match.XCorr, 2); !errors.Is(err, ErrTooManyHits) {
		t.Errorf("FromMatches() with capacity 2 error = %v, want ErrTooManyHits", err)
	}
}

func TestCollectionAdd(t *testing.T) {
	c := NewCollection(1)
	if err := c.Add(&Hit{ProteinID: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(&Hit{ProteinID: "B"}); !errors.Is(err, ErrTooManyHits) {
		t.Errorf("Add() error = %v, want ErrTooManyHits", err)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestRankedTieBreak(t *testing.T) {
	c := NewCollection(0)
	for _, id := range []string{"Z", "A", "M"} {
		if err := c.Add(&Hit{ProteinID: id, Score: 1}); err != nil {
			t.Fatal(err)
		}
	}
	var ids []string
	for _, h := range c.Ranked() {
		ids = append(ids, h.ProteinID)
	}
	if diff := cmp.Diff([]string{"A", "M", "Z"}, ids); diff != "" {
		t.Errorf("Ranked() order mismatch (-want +got):\n%s", diff)
	}
}
