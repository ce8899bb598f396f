package tab

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		prec int
		want string
	}{
		{name: "positive infinity", v: math.Inf(1), prec: 4, want: "Inf"},
		{name: "negative infinity", v: math.Inf(-1), prec: -1, want: "-Inf"},
		{name: "fixed precision", v: 1.23456, prec: 2, want: "1.23"},
		{name: "shortest", v: 0.1, prec: -1, want: "0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFloat(tt.v, tt.prec))
		})
	}
}

func TestColumnByName(t *testing.T) {
	for c := Column(0); c < numColumns; c++ {
		got, ok := ColumnByName(c.String())
		assert.True(t, ok, c.String())
		assert.Equal(t, c, got)
	}
	_, ok := ColumnByName("no such column")
	assert.False(t, ok)
}

func TestWriterRows(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, []Column{ColScan, ColXCorrScore, ColSequence})

	assert.NoError(t, w.WriteHeader())
	w.SetInt(ColScan, 7)
	w.Set(ColSequence, "PEPTIDE")
	w.Set(ColProteinID, "ignored")
	assert.NoError(t, w.WriteRow())
	w.SetFloat(ColXCorrScore, math.Inf(-1), -1)
	assert.NoError(t, w.WriteRow())
	assert.NoError(t, w.Flush())

	want := "scan\txcorr score\tsequence\n" +
		"7\t\tPEPTIDE\n" +
		"\t-Inf\t\n"
	assert.Equal(t, want, buf.String())
	assert.True(t, w.HasColumn(ColScan))
	assert.False(t, w.HasColumn(ColProteinID))
}

func TestWriteMatch(t *testing.T) {
	var buf bytes.Buffer
	cols := []Column{
		ColScan, ColCharge, ColPrecursorMZ, ColXCorrScore, ColXCorrRank, ColSpScore, ColPValue,
		ColMatchesSpectrum, ColSequence, ColProteinID, ColFlankingAA, ColUnshuffledSequence,
	}
	w := NewWriter(&buf, cols)

	p := &core.Peptide{
		Sequence:      "PEPSMK",
		Modifications: []core.Modification{{Mass: 79.966331, Position: 3}},
		ProteinIDs:    []string{"sp|P1", "sp|P2"},
		FlankN:        'R',
		Decoy:         true,
		Unshuffled:    "PSMEPK",
	}
	m := match.New(p, &core.Spectrum{FirstScan: 42, PrecursorMZ: 400.5}, 2)
	m.SetScore(match.XCorr, 2.5)
	m.SetRank(match.XCorr, 1)
	m.SetScore(match.Sp, math.Inf(1))

	assert.NoError(t, w.WriteMatch(m, 120))
	assert.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	want := []string{"42", "2", "400.5000", "2.5", "1", "Inf", "", "120", "PEPS[79.97]MK", "sp|P1,sp|P2", "R-", "PSMEPK"}
	assert.Equal(t, want, fields)
}
