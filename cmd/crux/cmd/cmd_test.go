package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/xcorr"
)

// writeInputs writes an MS2 file with one spectrum matching PEPTIDEK and a
// peptide list, returning their paths.
func writeInputs(t *testing.T, dir string) (string, string) {
	t.Helper()

	p := &core.Peptide{Sequence: "PEPTIDEK"}
	spec := &core.Spectrum{
		FirstScan:   7,
		LastScan:    7,
		PrecursorMZ: (p.NeutralMass() + 2*core.ProtonMass) / 2,
	}

	var b strings.Builder
	b.WriteString("H\tCreationDate\ttoday\n")
	fmt.Fprintf(&b, "S\t7\t7\t%.6f\n", spec.PrecursorMZ)
	fmt.Fprintf(&b, "Z\t2\t%.6f\n", spec.SinglyChargedMass(2))
	for _, ion := range xcorr.IonSeries(p, 2) {
		spec.Peaks = append(spec.Peaks, core.Peak{MZ: ion.MZ, Intensity: 100})
	}
	spec.SortPeaks()
	for _, peak := range spec.Peaks {
		fmt.Fprintf(&b, "%.6f %.1f\n", peak.MZ, peak.Intensity)
	}

	ms2Path := filepath.Join(dir, "run.ms2")
	mustNoError(t, os.WriteFile(ms2Path, []byte(b.String()), 0o644))

	peptides := "sequence\tprotein id\nPEPTIDEK\tP1\nEPPTIDEK\tP2\nGGGGK\tP3\n"
	pepPath := filepath.Join(dir, "peptides.txt")
	mustNoError(t, os.WriteFile(pepPath, []byte(peptides), 0o644))
	return ms2Path, pepPath
}

func mustNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return Execute(context.Background())
}

func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	ms2Path, pepPath := writeInputs(t, dir)

	mustNoError(t, execute(t, "search", ms2Path, pepPath, "--output-dir", out, "--min-peaks", "5"))
	for _, name := range []string{
		"search.target.txt", "search.decoy.txt",
		"search.target.sqt", "search.decoy.sqt",
		"search.target.pep.xml", "search.decoy.pep.xml",
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	target := filepath.Join(out, "search.target.txt")
	decoy := filepath.Join(out, "search.decoy.txt")

	// A second search refuses to replace the results.
	err := execute(t, "search", ms2Path, pepPath, "--output-dir", out, "--min-peaks", "5")
	assert.Error(t, err)

	mustNoError(t, execute(t, "compute-q-values", target, decoy, "--output-dir", out))
	assert.FileExists(t, filepath.Join(out, "qvalues.target.txt"))
	assert.FileExists(t, filepath.Join(out, "qvalues.decoy.pep.xml"))

	mustNoError(t, execute(t, "spectral-counts", filepath.Join(out, "qvalues.target.txt"),
		"--output-dir", out, "--threshold", "1"))
	counts, err := os.ReadFile(filepath.Join(out, "spectral-counts.target.txt"))
	mustNoError(t, err)
	assert.Contains(t, string(counts), "P1")

	mustNoError(t, execute(t, "percolator", target, decoy, "--output-dir", out, "--rtime-predictor", "krokhin"))
	features, err := os.ReadFile(filepath.Join(out, "percolator.features.txt"))
	mustNoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(features)), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "scan\tlabel\tXCorr"))
	assert.Greater(t, len(lines), 1)

	assert.NoError(t, execute(t, "validate", ms2Path))
	assert.NoError(t, execute(t, "validate", filepath.Join(out, "search.target.pep.xml")))
	assert.NoError(t, execute(t, "validate", target))
}

func TestPrintProcessedSpectra(t *testing.T) {
	dir := t.TempDir()
	ms2Path, _ := writeInputs(t, dir)

	mustNoError(t, execute(t, "print-processed-spectra", ms2Path, "processed.ms2",
		"--output-dir", dir, "--fileroot", "run", "--stop-after", "square-root"))

	data, err := os.ReadFile(filepath.Join(dir, "run.processed.ms2"))
	mustNoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "H\tComment\tSpectra processed as for Xcorr\n"))
	assert.Contains(t, text, "S\t000007\t000007\t")
	assert.Contains(t, text, "Z\t2\t")
}

func TestInvalidParameter(t *testing.T) {
	dir := t.TempDir()
	ms2Path, _ := writeInputs(t, dir)

	err := execute(t, "print-processed-spectra", ms2Path, "bad.ms2", "--output-dir", dir, "--stop-after", "flatten")
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "bad.ms2"))
}

func TestTopRanked(t *testing.T) {
	c := match.NewCollection(0)
	c.RegisterScores(match.XCorr)
	for i, rank := range []int{1, 2, match.NotRanked} {
		m := match.New(&core.Peptide{Sequence: "PEPTIDEK"}, &core.Spectrum{FirstScan: i}, 2)
		m.SetScore(match.XCorr, float64(i))
		m.SetRank(match.XCorr, rank)
		mustNoError(t, c.Add(m))
	}

	got, err := topRanked(c, match.XCorr, 1)
	mustNoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.True(t, got.IsRegistered(match.XCorr))
}
