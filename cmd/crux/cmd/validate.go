package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/reader/ms2"
	pepxmlreader "github.com/hsiaoyi0504/crux-toolkit/pkg/reader/pepxml"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate an MS2 spectrum file or a result file",
	Long: `Check that a file is properly formatted and contains valid data, then
print summary statistics. MS2 files (.ms2) are checked spectrum by
spectrum; pepXML files (.pep.xml, .xml) and tab-delimited match files are
read back into matches.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	addModsFlag(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".ms2"):
		return validateSpectra(path)
	case strings.HasSuffix(lower, ".xml"):
		return validatePepXML(path)
	default:
		modDB, err := loadModDatabase()
		if err != nil {
			return err
		}
		c, err := readMatchFile(path, modDB, false)
		if err != nil {
			return err
		}
		return summarizeMatches(path, c)
	}
}

func validateSpectra(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open spectrum file: %w", err)
	}
	defer f.Close()

	reader := ms2.NewReader(f, path)
	var peakCounts []float64
	invalid := 0
	for reader.Next() {
		spec := reader.Spectrum()
		if err := spec.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: scan %d: %v\n", spec.FirstScan, err)
			invalid++
			continue
		}
		peakCounts = append(peakCounts, float64(len(spec.Peaks)))
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("failed to read spectra: %w", err)
	}

	fmt.Printf("%s: %d spectra, %d invalid\n", path, len(peakCounts)+invalid, invalid)
	if len(peakCounts) > 0 {
		mean, std := stat.MeanStdDev(peakCounts, nil)
		fmt.Printf("  Peaks per spectrum: mean %.1f, std dev %.1f\n", mean, std)
	}
	if invalid > 0 {
		return fmt.Errorf("%d invalid spectra in %s", invalid, path)
	}
	return nil
}

func validatePepXML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open pepXML file: %w", err)
	}
	defer f.Close()

	doc, err := pepxmlreader.Read(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	c, err := pepxmlreader.Matches(doc, modDB, false)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Printf("%s: %d spectrum queries\n", path, len(doc.RunSummary.Queries))
	return summarizeMatches(path, c)
}

// summarizeMatches prints the match count and the distribution of every
// registered score.
func summarizeMatches(path string, c *match.Collection) error {
	fmt.Printf("%s: %d matches\n", path, c.Len())
	for _, t := range c.ScoredTypes() {
		var values []float64
		for _, m := range c.Matches() {
			if v, err := m.Score(t); err == nil {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(values, nil)
		fmt.Printf("  %s: %d scored, mean %.4f, std dev %.4f\n", t, len(values), mean, std)
	}
	return nil
}
