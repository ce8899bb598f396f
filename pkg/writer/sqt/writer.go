// Package sqt writes search results in the SEQUEST SQT text format: H header
// lines, then one S line per spectrum and charge followed by M lines for
// each match and L lines for each of its proteins.
package sqt

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
)

// Header carries the run metadata written at the top of an SQT file.
type Header struct {
	StartTime          string
	Database           string
	NumProteins        int
	PrecursorTolerance float64
	FragmentTolerance  float64
	Enzyme             string
	TopMatches         int
	Modifications      []core.Modification
}

// Writer writes SQT records.
type Writer struct {
	w *bufio.Writer

	// Host fills the server column of S lines.
	Host string
}

// NewWriter creates an SQT writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), Host: "crux"}
}

// WriteHeader writes the H lines. NumProteins fills DBLocusCount.
func (w *Writer) WriteHeader(h Header) error {
	lines := [][2]string{
		{"SQTGenerator", "Crux"},
		{"SQTGeneratorVersion", "1.0"},
		{"Comment", "Crux was written by..."},
		{"StartTime", h.StartTime},
		{"EndTime", ""},
		{"Database", h.Database},
		{"DBSeqLength", "?"},
		{"DBLocusCount", fmt.Sprint(h.NumProteins)},
		{"PrecursorMasses", "mono"},
		{"FragmentMasses", "mono"},
		{"Alg-PreMassTol", fmt.Sprintf("%.1f", h.PrecursorTolerance)},
		{"Alg-FragMassTol", fmt.Sprintf("%.2f", h.FragmentTolerance)},
		{"Alg-XCorrMode", "0"},
	}
	for _, mod := range h.Modifications {
		kind := "DiffMod"
		if mod.Symbol == 0 {
			kind = "StaticMod"
		}
		lines = append(lines, [2]string{kind, modDescription(mod)})
	}
	lines = append(lines,
		[2]string{"Alg-DisplayTop", fmt.Sprint(h.TopMatches)},
		[2]string{"EnzymeSpec", h.Enzyme},
	)

	for _, l := range lines {
		if _, err := fmt.Fprintf(w.w, "H\t%s\t%s\n", l[0], l[1]); err != nil {
			return fmt.Errorf("failed to write SQT header: %w", err)
		}
	}
	return nil
}

func modDescription(mod core.Modification) string {
	name := mod.Name
	if name == "" {
		name = "mod"
	}
	if mod.Symbol != 0 {
		return fmt.Sprintf("%s%c=%+.4f", name, mod.Symbol, mod.Mass)
	}
	return fmt.Sprintf("%s=%+.4f", name, mod.Mass)
}

// WriteSpectrum writes the S line of one spectrum and charge and the M and L
// lines of its matches, which must already be ranked by XCorr. totalMatches
// is the number of candidates scored for the spectrum.
func (w *Writer) WriteSpectrum(spec *core.Spectrum, charge int, matches []*match.Match, totalMatches int) error {
	lowestSp := 0.0
	for i, m := range matches {
		if sp, err := m.Score(match.Sp); err == nil && (i == 0 || sp < lowestSp) {
			lowestSp = sp
		}
	}

	_, err := fmt.Fprintf(w.w, "S\t%d\t%d\t%d\t%.1f\t%s\t%.4f\t%.1f\t%.1f\t%d\n",
		spec.FirstScan, spec.LastScan, charge, 0.0, w.Host,
		spec.SinglyChargedMass(charge), spec.TotalIonCurrent(), lowestSp, totalMatches)
	if err != nil {
		return fmt.Errorf("failed to write SQT spectrum %d: %w", spec.FirstScan, err)
	}

	for _, m := range matches {
		if err := w.writeMatch(m); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeMatch(m *match.Match) error {
	xcorr, _ := m.Score(match.XCorr)
	sp, _ := m.Score(match.Sp)
	p := m.Peptide

	_, err := fmt.Fprintf(w.w, "M\t%d\t%d\t%.4f\t%.4f\t%s\t%s\t%d\t%d\t%s\tU\n",
		m.Rank(match.XCorr), m.Rank(match.Sp),
		m.PeptideMass()+core.ProtonMass, m.DeltaCn,
		formatScore(xcorr), formatScore(sp),
		m.ByIonsMatched, m.ByIonsPossible, p.SQTSequence())
	if err != nil {
		return fmt.Errorf("failed to write SQT match %s: %w", m, err)
	}

	proteins := p.ProteinIDs
	if len(proteins) == 0 {
		proteins = []string{""}
	}
	for _, id := range proteins {
		if m.Decoy {
			id = "decoy_" + id
		}
		if _, err := fmt.Fprintf(w.w, "L\t%s\n", id); err != nil {
			return fmt.Errorf("failed to write SQT locus: %w", err)
		}
	}
	return nil
}

func formatScore(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return fmt.Sprintf("%.4f", v)
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
