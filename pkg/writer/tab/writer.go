// Package tab writes tab-delimited result files: one header row of column
// names followed by one row per match.
package tab

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
)

// Precision for mass columns. Scores use the shortest exact representation.
const MassPrecision = 4

// Writer writes rows over a fixed column set. Cells left unset are written
// empty.
type Writer struct {
	w       *bufio.Writer
	columns []Column
	index   map[Column]int
	row     []string
}

// NewWriter creates a writer for the given columns.
func NewWriter(w io.Writer, columns []Column) *Writer {
	index := make(map[Column]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &Writer{
		w:       bufio.NewWriter(w),
		columns: append([]Column(nil), columns...),
		index:   index,
		row:     make([]string, len(columns)),
	}
}

// Columns returns the column set.
func (w *Writer) Columns() []Column {
	return append([]Column(nil), w.columns...)
}

// HasColumn reports whether c is in the column set.
func (w *Writer) HasColumn(c Column) bool {
	_, ok := w.index[c]
	return ok
}

// WriteHeader writes the column names.
func (w *Writer) WriteHeader() error {
	names := make([]string, len(w.columns))
	for i, c := range w.columns {
		names[i] = c.String()
	}
	_, err := w.w.WriteString(strings.Join(names, "\t") + "\n")
	return err
}

// Set stores a cell of the current row. Columns outside the set are ignored.
func (w *Writer) Set(c Column, v string) {
	if i, ok := w.index[c]; ok {
		w.row[i] = v
	}
}

// SetInt stores an integer cell.
func (w *Writer) SetInt(c Column, v int) {
	w.Set(c, strconv.Itoa(v))
}

// SetFloat stores a float cell with prec decimals; -1 gives the shortest
// exact representation.
func (w *Writer) SetFloat(c Column, v float64, prec int) {
	w.Set(c, FormatFloat(v, prec))
}

// WriteRow writes the current row and clears it.
func (w *Writer) WriteRow() error {
	_, err := w.w.WriteString(strings.Join(w.row, "\t") + "\n")
	for i := range w.row {
		w.row[i] = ""
	}
	return err
}

// Flush flushes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// FormatFloat formats v, writing infinities as Inf and -Inf.
func FormatFloat(v float64, prec int) string {
	switch {
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// WriteMatch writes one match row. numMatches fills the matches/spectrum
// column. Scores and ranks the match does not hold stay empty.
func (w *Writer) WriteMatch(m *match.Match, numMatches int) error {
	w.SetInt(ColScan, m.Scan())
	w.SetInt(ColCharge, m.Charge)
	if m.Spectrum != nil {
		w.SetFloat(ColPrecursorMZ, m.Spectrum.PrecursorMZ, MassPrecision)
	}
	w.SetFloat(ColSpectrumNeutralMass, m.SpectrumNeutralMass(), MassPrecision)
	w.SetFloat(ColPeptideMass, m.PeptideMass(), MassPrecision)
	w.SetFloat(ColDeltaCn, m.DeltaCn, -1)

	for _, t := range match.ScoreTypes() {
		if col, ok := ScoreColumn(t); ok && m.HasScore(t) {
			v, err := m.Score(t)
			if err != nil {
				return err
			}
			w.SetFloat(col, v, -1)
		}
		if col, ok := RankColumn(t); ok && m.Rank(t) != match.NotRanked {
			w.SetInt(col, m.Rank(t))
		}
	}

	if m.ByIonsPossible > 0 {
		w.SetInt(ColByIonsMatched, m.ByIonsMatched)
		w.SetInt(ColByIonsTotal, m.ByIonsPossible)
	}
	w.SetInt(ColMatchesSpectrum, numMatches)

	if p := m.Peptide; p != nil {
		w.Set(ColSequence, p.ModSequenceWithMasses(false))
		w.Set(ColProteinID, p.ProteinIDString())
		w.Set(ColFlankingAA, p.FlankingResidues())
		if m.Decoy {
			w.Set(ColUnshuffledSequence, p.Unshuffled)
		}
	}

	if err := w.WriteRow(); err != nil {
		return fmt.Errorf("failed to write match %s: %w", m, err)
	}
	return nil
}
