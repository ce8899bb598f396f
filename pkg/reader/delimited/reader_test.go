package delimited

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hsiaoyi0504/crux-toolkit/internal/logging"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/tab"
)

func TestReaderColumns(t *testing.T) {
	input := "scan\tscore\tname\n1\t2.5\tfoo\n2\t\tbar\n"
	r, err := NewReader(strings.NewReader(input), true)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []string{"scan", "score", "name"}, r.Columns())
	assert.Equal(t, 1, r.FindColumn("score"))
	assert.Equal(t, -1, r.FindColumn("missing"))

	assert.True(t, r.Next())
	scan, err := r.Int("scan")
	assert.NoError(t, err)
	assert.Equal(t, 1, scan)
	score, err := r.Float("score")
	assert.NoError(t, err)
	assert.Equal(t, 2.5, score)

	assert.True(t, r.Next())
	score, err = r.Float("score")
	assert.NoError(t, err)
	assert.Equal(t, 0.0, score, "empty cell reads as 0")
	name, err := r.String("name")
	assert.NoError(t, err)
	assert.Equal(t, "bar", name)

	_, err = r.String("missing")
	assert.True(t, errors.Is(err, ErrColumnNotFound))
	_, err = r.Float("missing")
	assert.True(t, errors.Is(err, ErrColumnNotFound))

	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
}

func TestReaderInfinity(t *testing.T) {
	r, err := NewReader(strings.NewReader("a\tb\nInf\t-Inf\n"), true)
	if !assert.NoError(t, err) {
		return
	}
	assert.True(t, r.Next())
	a, err := r.Float("a")
	assert.NoError(t, err)
	assert.True(t, math.IsInf(a, 1))
	b, err := r.Float("b")
	assert.NoError(t, err)
	assert.True(t, math.IsInf(b, -1))
}

func TestReaderPadsShortRowsWithSingleWarning(t *testing.T) {
	var logs bytes.Buffer
	logging.Init(slog.LevelWarn, "text", &logs)
	defer logging.Init(slog.LevelWarn, "text")

	input := "a\tb\tc\n1\n2\t3\n4\t5\t6\n"
	r, err := NewReader(strings.NewReader(input), true)
	if !assert.NoError(t, err) {
		return
	}

	var rows [][]string
	for r.Next() {
		var row []string
		for _, col := range r.Columns() {
			v, err := r.String(col)
			assert.NoError(t, err)
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	assert.NoError(t, r.Err())
	assert.Equal(t, [][]string{{"1", "", ""}, {"2", "3", ""}, {"4", "5", "6"}}, rows)

	assert.Equal(t, 1, strings.Count(logs.String(), "column count is less than header"))
	assert.Equal(t, 1, strings.Count(logs.String(), "suppressing warnings"))
}

func TestReaderInvalidNumber(t *testing.T) {
	r, err := NewReader(strings.NewReader("a\nabc\n"), true)
	if !assert.NoError(t, err) {
		return
	}
	assert.True(t, r.Next())
	_, err = r.Float("a")
	assert.Error(t, err)
	_, err = r.Int("a")
	assert.Error(t, err)
}

func TestReaderRejectsNaN(t *testing.T) {
	for _, cell := range []string{"NaN", "nan", "-NaN"} {
		t.Run(cell, func(t *testing.T) {
			r, err := NewReader(strings.NewReader("a\n"+cell+"\n"), true)
			if !assert.NoError(t, err) {
				return
			}
			assert.True(t, r.Next())
			_, err = r.Float("a")
			assert.ErrorIs(t, err, ErrNotANumber)
		})
	}
}

func TestTabRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := tab.NewWriter(&buf, []tab.Column{tab.ColScan, tab.ColCharge, tab.ColXCorrScore, tab.ColSpScore, tab.ColSequence})
	assert.NoError(t, w.WriteHeader())
	for _, v := range []float64{math.Inf(1), math.Inf(-1), 1.25} {
		w.SetInt(tab.ColScan, 1)
		w.SetInt(tab.ColCharge, 2)
		w.SetFloat(tab.ColXCorrScore, v, -1)
		w.Set(tab.ColSequence, "PEPTIDE")
		assert.NoError(t, w.WriteRow())
	}
	assert.NoError(t, w.Flush())

	r, err := NewReader(&buf, true)
	if !assert.NoError(t, err) {
		return
	}
	var got []float64
	for r.Next() {
		v, err := r.Float(tab.ColXCorrScore.String())
		assert.NoError(t, err)
		got = append(got, v)
		sp, err := r.Float(tab.ColSpScore.String())
		assert.NoError(t, err)
		assert.Equal(t, 0.0, sp)
	}
	if assert.Len(t, got, 3) {
		assert.True(t, math.IsInf(got[0], 1))
		assert.True(t, math.IsInf(got[1], -1))
		assert.Equal(t, 1.25, got[2])
	}
}

func TestReadMatches(t *testing.T) {
	var buf bytes.Buffer
	cols := []tab.Column{
		tab.ColScan, tab.ColCharge, tab.ColPrecursorMZ, tab.ColDeltaCn, tab.ColXCorrScore, tab.ColXCorrRank,
		tab.ColSpScore, tab.ColByIonsMatched, tab.ColByIonsTotal, tab.ColSequence, tab.ColProteinID,
		tab.ColFlankingAA,
	}
	w := tab.NewWriter(&buf, cols)
	assert.NoError(t, w.WriteHeader())

	spec := &core.Spectrum{FirstScan: 5, PrecursorMZ: 421.75}
	first := match.New(&core.Peptide{
		Sequence:      "PEPSMK",
		Modifications: []core.Modification{{Mass: 79.97, Position: 3}},
		ProteinIDs:    []string{"P1", "P2"},
		FlankN:        'K',
		FlankC:        'A',
	}, spec, 2)
	first.SetScore(match.XCorr, 3.5)
	first.SetRank(match.XCorr, 1)
	first.ByIonsMatched, first.ByIonsPossible = 6, 10
	second := match.New(&core.Peptide{Sequence: "AAAAK", ProteinIDs: []string{"P3"}}, spec, 2)
	second.SetScore(match.XCorr, 1.5)
	second.SetRank(match.XCorr, 2)
	second.SetDeltaCn(0.25)

	assert.NoError(t, w.WriteMatch(first, 2))
	assert.NoError(t, w.WriteMatch(second, 2))
	assert.NoError(t, w.Flush())

	r, err := NewReader(&buf, true)
	if !assert.NoError(t, err) {
		return
	}
	c, err := ReadMatches(r, nil, false)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []match.ScoreType{match.Sp, match.XCorr}, c.ScoredTypes())

	matches := c.Matches()
	if !assert.Len(t, matches, 2) {
		return
	}
	got := matches[0]
	assert.Equal(t, "PEPSMK", got.Sequence())
	assert.Equal(t, []core.Modification{{Mass: 79.97, Position: 3}}, got.Peptide.Modifications)
	assert.Equal(t, []string{"P1", "P2"}, got.Peptide.ProteinIDs)
	assert.Equal(t, byte('K'), got.Peptide.FlankN)
	assert.Equal(t, 421.75, got.Spectrum.PrecursorMZ)
	xc, err := got.Score(match.XCorr)
	assert.NoError(t, err)
	assert.Equal(t, 3.5, xc)
	assert.Equal(t, 1, got.Rank(match.XCorr))
	assert.False(t, got.HasScore(match.Sp), "empty sp cell stays unset")
	assert.Equal(t, 6, got.ByIonsMatched)

	assert.Same(t, matches[0].Spectrum, matches[1].Spectrum)
	assert.Equal(t, 0.25, matches[1].DeltaCn)
}

func TestReadMatchesMissingColumn(t *testing.T) {
	r, err := NewReader(strings.NewReader("scan\tcharge\n1\t2\n"), true)
	if !assert.NoError(t, err) {
		return
	}
	_, err = ReadMatches(r, nil, false)
	assert.True(t, errors.Is(err, ErrColumnNotFound))
}

func TestReadMatchesNaNScore(t *testing.T) {
	var buf bytes.Buffer
	w := tab.NewWriter(&buf, []tab.Column{
		tab.ColScan, tab.ColCharge, tab.ColPrecursorMZ, tab.ColXCorrScore, tab.ColSequence,
	})
	assert.NoError(t, w.WriteHeader())
	m := match.New(&core.Peptide{Sequence: "PEPK"}, &core.Spectrum{FirstScan: 3, PrecursorMZ: 250}, 2)
	m.SetScore(match.XCorr, math.NaN())
	assert.NoError(t, w.WriteMatch(m, 1))
	assert.NoError(t, w.Flush())
	assert.Contains(t, buf.String(), "NaN")

	r, err := NewReader(&buf, true)
	if !assert.NoError(t, err) {
		return
	}
	_, err = ReadMatches(r, nil, false)
	assert.ErrorIs(t, err, ErrNotANumber)
}
