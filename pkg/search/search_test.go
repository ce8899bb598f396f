package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/filter"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/reader/delimited"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/reader/ms2"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/xcorr"
)

func syntheticSpectrum(p *core.Peptide, scan, charge int) *core.Spectrum {
	spec := &core.Spectrum{
		FirstScan:   scan,
		LastScan:    scan,
		PrecursorMZ: (p.NeutralMass() + float64(charge)*core.ProtonMass) / float64(charge),
		Charges:     []int{charge},
	}
	for _, ion := range xcorr.IonSeries(p, charge) {
		spec.Peaks = append(spec.Peaks, core.Peak{MZ: ion.MZ, Intensity: 100})
	}
	spec.SortPeaks()
	return spec
}

func testDatabase() *Database {
	return NewDatabase([]*core.Peptide{
		{Sequence: "GGGGK", ProteinIDs: []string{"P3"}},
		{Sequence: "EPPTIDEK", ProteinIDs: []string{"P2"}},
		{Sequence: "PEPTIDEK", ProteinIDs: []string{"P1", "P2"}},
	})
}

func TestDatabaseCandidates(t *testing.T) {
	db := testDatabase()
	assert.Equal(t, 3, db.Len())
	assert.Equal(t, 3, db.NumProteins())

	mass := (&core.Peptide{Sequence: "PEPTIDEK"}).NeutralMass()
	got := db.Candidates(mass, 3)
	if assert.Len(t, got, 2) {
		seqs := []string{got[0].Sequence, got[1].Sequence}
		assert.ElementsMatch(t, []string{"PEPTIDEK", "EPPTIDEK"}, seqs)
	}
	assert.Empty(t, db.Candidates(2000, 3))

	light := db.Candidates((&core.Peptide{Sequence: "GGGGK"}).NeutralMass(), 0.01)
	if assert.Len(t, light, 1) {
		assert.Equal(t, "GGGGK", light[0].Sequence)
	}
}

func TestReadPeptides(t *testing.T) {
	in := "sequence\tprotein id\tflanking aa\n" +
		"PEPT[79.97]IDEK\tP1,P2\tKA\n" +
		"GGGGK\tP3\t\n"
	db, err := ReadPeptides(strings.NewReader(in), nil)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 2, db.Len())
	assert.Equal(t, 3, db.NumProteins())

	heavy := db.peptides[1]
	assert.Equal(t, "PEPTIDEK", heavy.Sequence)
	assert.Equal(t, []string{"P1", "P2"}, heavy.ProteinIDs)
	assert.Equal(t, "KA", heavy.FlankingResidues())
	if assert.Len(t, heavy.Modifications, 1) {
		assert.Equal(t, 3, heavy.Modifications[0].Position)
	}

	_, err = ReadPeptides(strings.NewReader("peptide\nPEPK\n"), nil)
	assert.True(t, errors.Is(err, delimited.ErrColumnNotFound), "%v", err)
}

func TestReadPeptidesModificationList(t *testing.T) {
	in := "sequence\tmodifications\n" +
		"ACDK\tCarbamidomethyl@C2\n" +
		"M#K\tAcetyl@-1\n" +
		"PEPK\t\n"
	db, err := ReadPeptides(strings.NewReader(in), nil)
	if !assert.NoError(t, err) {
		return
	}
	var mods [][]core.Modification
	for _, p := range db.peptides {
		mods = append(mods, p.Modifications)
	}
	assert.ElementsMatch(t, [][]core.Modification{
		{{Mass: 57.021464, Position: 1, Name: "Carbamidomethyl"}},
		{{Mass: 15.994915, Position: 0, Name: "Oxidation", Symbol: '#'}, {Mass: 42.010565, Position: -1, Name: "Acetyl", Symbol: '^'}},
		nil,
	}, mods)

	_, err = ReadPeptides(strings.NewReader("sequence\tmodifications\nPEPK\tPhospho@S2\n"), nil)
	assert.Error(t, err)
}

func TestSearchSpectrum(t *testing.T) {
	p := &core.Peptide{Sequence: "PEPTIDEK"}
	spec := syntheticSpectrum(p, 11, 2)

	s := New(testDatabase(), Options{PrecursorWindow: 3, NumDecoys: 2})
	results, err := s.SearchSpectrum(spec)
	if !assert.NoError(t, err) || !assert.Len(t, results, 1) {
		return
	}
	r := results[0]
	assert.Equal(t, 2, r.Charge)
	assert.Equal(t, 2, r.Candidates)
	assert.Equal(t, 2, r.Target.Len())
	assert.Len(t, r.Decoys, 2)

	top, err := r.Target.Top(match.XCorr, 1)
	if assert.NoError(t, err) && assert.Len(t, top, 1) {
		assert.Equal(t, "PEPTIDEK", top[0].Sequence())
		assert.Equal(t, 1, top[0].Rank(match.XCorr))
		assert.Greater(t, top[0].DeltaCn, 0.0)
		assert.True(t, top[0].BestPerPeptide)
		assert.Equal(t, top[0].ByIonsPossible, top[0].ByIonsMatched)
	}
	assert.Equal(t, []match.ScoreType{match.Sp, match.XCorr}, r.Target.ScoredTypes())

	for _, d := range r.Decoys {
		assert.Equal(t, 2, d.Len())
		for _, m := range d.Matches() {
			assert.True(t, m.Decoy)
			assert.NotEqual(t, match.NotRanked, m.Rank(match.XCorr))
		}
	}
}

func TestSearchBackendsAgree(t *testing.T) {
	p := &core.Peptide{Sequence: "PEPTIDEK"}
	spec := syntheticSpectrum(p, 1, 2)

	seq, err := New(testDatabase(), Options{PrecursorWindow: 3}).SearchSpectrum(spec)
	assert.NoError(t, err)
	par, err := New(testDatabase(), Options{PrecursorWindow: 3, Backend: xcorr.Parallel{Workers: 3}}).SearchSpectrum(spec)
	assert.NoError(t, err)

	a, _ := seq[0].Target.Sorted(match.XCorr)
	b, _ := par[0].Target.Sorted(match.XCorr)
	if assert.Equal(t, len(a), len(b)) {
		for i := range a {
			assert.Equal(t, a[i].Sequence(), b[i].Sequence())
			x, _ := a[i].Score(match.XCorr)
			y, _ := b[i].Score(match.XCorr)
			assert.InDelta(t, x, y, 1e-6)
		}
	}
}

func TestSearchChargeOverride(t *testing.T) {
	spec := syntheticSpectrum(&core.Peptide{Sequence: "PEPTIDEK"}, 1, 2)
	spec.Charges = nil

	results, err := New(testDatabase(), Options{PrecursorWindow: 3}).SearchSpectrum(spec)
	assert.NoError(t, err)
	assert.Len(t, results, len(DefaultCharges))

	results, err = New(testDatabase(), Options{PrecursorWindow: 3, Charges: []int{3}}).SearchSpectrum(spec)
	assert.NoError(t, err)
	if assert.Len(t, results, 1) {
		assert.Equal(t, 3, results[0].Charge)
	}
}

type recordingSink struct {
	scans  []int
	decoys []int
	err    error
}

func (r *recordingSink) WriteMatches(target *match.Collection, decoys []*match.Collection, rankType match.ScoreType, spec *core.Spectrum) error {
	r.scans = append(r.scans, spec.FirstScan)
	r.decoys = append(r.decoys, len(decoys))
	return r.err
}

func ms2Text(specs ...*core.Spectrum) string {
	var b strings.Builder
	b.WriteString("H\tCreationDate\ttoday\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "S\t%d\t%d\t%.6f\n", s.FirstScan, s.LastScan, s.PrecursorMZ)
		for _, z := range s.Charges {
			fmt.Fprintf(&b, "Z\t%d\t%.6f\n", z, s.SinglyChargedMass(z))
		}
		for _, p := range s.Peaks {
			fmt.Fprintf(&b, "%.6f %.1f\n", p.MZ, p.Intensity)
		}
	}
	return b.String()
}

func TestRun(t *testing.T) {
	hit := syntheticSpectrum(&core.Peptide{Sequence: "PEPTIDEK"}, 5, 2)
	miss := &core.Spectrum{FirstScan: 6, LastScan: 6, PrecursorMZ: 1500, Charges: []int{2},
		Peaks: []core.Peak{{MZ: 200, Intensity: 1}}}

	src := ms2.NewReader(strings.NewReader(ms2Text(hit, miss)), "test.ms2")
	sink := &recordingSink{}
	s := New(testDatabase(), Options{PrecursorWindow: 3, NumDecoys: 1})

	sum, err := s.Run(context.Background(), src, sink)
	assert.NoError(t, err)
	assert.Equal(t, Summary{Spectra: 2, Searched: 1, Matches: 2}, sum)
	assert.Equal(t, []int{5}, sink.scans)
	assert.Equal(t, []int{1}, sink.decoys)
}

func TestRunStopsOnSinkError(t *testing.T) {
	hit := syntheticSpectrum(&core.Peptide{Sequence: "PEPTIDEK"}, 5, 2)
	src := ms2.NewReader(strings.NewReader(ms2Text(hit)), "test.ms2")
	sinkErr := errors.New("disk full")

	_, err := New(testDatabase(), Options{PrecursorWindow: 3}).Run(context.Background(), src, &recordingSink{err: sinkErr})
	assert.ErrorIs(t, err, sinkErr)
}

func TestRunCanceled(t *testing.T) {
	hit := syntheticSpectrum(&core.Peptide{Sequence: "PEPTIDEK"}, 5, 2)
	src := ms2.NewReader(strings.NewReader(ms2Text(hit)), "test.ms2")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testDatabase(), Options{PrecursorWindow: 3}).Run(ctx, src, &recordingSink{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSkipsFilteredSpectra(t *testing.T) {
	hit := syntheticSpectrum(&core.Peptide{Sequence: "PEPTIDEK"}, 5, 2)
	sparse := &core.Spectrum{FirstScan: 6, LastScan: 6, PrecursorMZ: hit.PrecursorMZ, Charges: []int{2},
		Peaks: []core.Peak{{MZ: 200, Intensity: 1}}}

	src := ms2.NewReader(strings.NewReader(ms2Text(sparse, hit)), "test.ms2")
	sink := &recordingSink{}
	s := New(testDatabase(), Options{PrecursorWindow: 3, Filter: &filter.Config{MinPeaks: 5}})

	sum, err := s.Run(context.Background(), src, sink)
	assert.NoError(t, err)
	assert.Equal(t, Summary{Spectra: 2, Skipped: 1, Searched: 1, Matches: 2}, sum)
	assert.Equal(t, []int{5}, sink.scans)
}

func TestRunSkipsInvalidSpectra(t *testing.T) {
	hit := syntheticSpectrum(&core.Peptide{Sequence: "PEPTIDEK"}, 5, 2)
	broken := syntheticSpectrum(&core.Peptide{Sequence: "PEPTIDEK"}, 6, 2)
	broken.Peaks[0].Intensity = math.Inf(1)
	broken.Peaks[1].Intensity = math.NaN()

	src := ms2.NewReader(strings.NewReader(ms2Text(broken, hit)), "test.ms2")
	sink := &recordingSink{}
	s := New(testDatabase(), Options{PrecursorWindow: 3})

	sum, err := s.Run(context.Background(), src, sink)
	assert.NoError(t, err)
	assert.Equal(t, 2, sum.Spectra)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, []int{5}, sink.scans)
}
