package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/output"
)

// qValueThreshold is the FDR reported in the command summary.
const qValueThreshold = 0.01

var qvaluesCmd = &cobra.Command{
	Use:   "compute-q-values <target matches> <decoy matches>",
	Short: "Estimate q-values by target-decoy competition",
	Long: `Read the tab-delimited target and decoy files of a search, keep the best
XCorr match of each spectrum, and assign every match a decoy q-value. The
results are written to qvalues.target and qvalues.decoy files.

Examples:
  crux compute-q-values crux-output/search.target.txt crux-output/search.decoy.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runQValues,
}

func init() {
	rootCmd.AddCommand(qvaluesCmd)

	addModsFlag(qvaluesCmd)
}

func runQValues(cmd *cobra.Command, args []string) error {
	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}

	target, err := readMatchFile(args[0], modDB, false)
	if err != nil {
		return err
	}
	decoy, err := readMatchFile(args[1], modDB, true)
	if err != nil {
		return err
	}
	fmt.Printf("Read %d target and %d decoy matches\n", target.Len(), decoy.Len())

	if target, err = topRanked(target, match.XCorr, 1); err != nil {
		return err
	}
	if decoy, err = topRanked(decoy, match.XCorr, 1); err != nil {
		return err
	}
	if err := match.ComputeDecoyQValues(target, decoy, match.XCorr); err != nil {
		return fmt.Errorf("failed to compute q-values: %w", err)
	}

	if err := prepareOutputDir(); err != nil {
		return err
	}
	files, err := output.Open(output.Options{
		Dir:                params.OutputDir,
		Fileroot:           params.Fileroot,
		Command:            output.CommandQValues,
		NumDecoyFiles:      1,
		Overwrite:          params.Overwrite,
		MatchesPerSpectrum: 1,
		SpectrumFile:       args[0],
	})
	if err != nil {
		return fmt.Errorf("failed to open output files: %w", err)
	}
	defer files.Close()

	if err := files.WriteHeaders(0); err != nil {
		return err
	}
	if err := files.WriteMatches(target, []*match.Collection{decoy}, match.XCorr, nil); err != nil {
		return fmt.Errorf("failed to write matches: %w", err)
	}
	if err := files.WriteFooters(); err != nil {
		return err
	}
	if err := files.Close(); err != nil {
		return fmt.Errorf("failed to close output files: %w", err)
	}

	accepted := 0
	for _, m := range target.Matches() {
		if q, err := m.Score(match.DecoyXCorrQValue); err == nil && q <= qValueThreshold {
			accepted++
		}
	}
	fmt.Printf("%d of %d target spectra accepted at q <= %.2f\n", accepted, target.Len(), qValueThreshold)
	return nil
}
