package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/hit"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/output"
)

var (
	// Flags for spectral-counts command
	quantLevel string
	scoreName  string
	threshold  float64
)

var spectralCountsCmd = &cobra.Command{
	Use:   "spectral-counts <matches>",
	Short: "Rank peptides or proteins by their best match scores",
	Long: `Read a tab-delimited match file and rank either peptides by their best
score or proteins by the summed best scores of their peptides. When the
file carries decoy q-values, only matches at or below --threshold count.

Examples:
  crux spectral-counts crux-output/qvalues.target.txt --quant-level peptide`,
	Args: cobra.ExactArgs(1),
	RunE: runSpectralCounts,
}

func init() {
	rootCmd.AddCommand(spectralCountsCmd)

	addModsFlag(spectralCountsCmd)
	spectralCountsCmd.Flags().StringVar(&quantLevel, "quant-level", "protein", "Level to rank: protein or peptide")
	spectralCountsCmd.Flags().StringVar(&scoreName, "score-type", match.XCorr.String(), "Score used to rank peptides")
	spectralCountsCmd.Flags().Float64Var(&threshold, "threshold", 0.01, "Maximum decoy q-value of counted matches")
}

func runSpectralCounts(cmd *cobra.Command, args []string) error {
	if quantLevel != "protein" && quantLevel != "peptide" {
		return fmt.Errorf("quant-level must be protein or peptide, got '%s'", quantLevel)
	}
	scoreType, err := match.ParseScoreType(scoreName)
	if err != nil {
		return err
	}
	if !scoreType.LargerIsBetter() {
		return fmt.Errorf("score-type %s ranks ascending; choose a score where larger is better", scoreType)
	}

	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	all, err := readMatchFile(args[0], modDB, false)
	if err != nil {
		return err
	}
	if !all.IsRegistered(scoreType) {
		return fmt.Errorf("%s has no %s column", args[0], scoreType)
	}

	matches := all
	if all.IsRegistered(match.DecoyXCorrQValue) {
		matches = match.NewCollection(0)
		matches.RegisterScores(all.ScoredTypes()...)
		for _, m := range all.Matches() {
			if q, err := m.Score(match.DecoyXCorrQValue); err != nil || q > threshold {
				continue
			}
			if err := matches.Add(m); err != nil {
				return err
			}
		}
		fmt.Printf("%d of %d matches pass q <= %g\n", matches.Len(), all.Len(), threshold)
	}

	if err := prepareOutputDir(); err != nil {
		return err
	}
	files, err := output.Open(output.Options{
		Dir:       params.OutputDir,
		Fileroot:  params.Fileroot,
		Command:   output.CommandSpectralCounts,
		Overwrite: params.Overwrite,
	})
	if err != nil {
		return fmt.Errorf("failed to open output files: %w", err)
	}
	defer files.Close()

	if err := files.WriteHeaders(0); err != nil {
		return err
	}

	switch quantLevel {
	case "peptide":
		peptides, err := hit.RankedPeptides(matches, scoreType)
		if err != nil {
			return err
		}
		if err := files.WriteRankedPeptides(peptides); err != nil {
			return err
		}
		fmt.Printf("Ranked %d peptides\n", len(peptides))
	default:
		hits, err := hit.FromMatches(matches, scoreType, 0)
		if err != nil {
			return err
		}
		if err := files.WriteRankedProteins(hits.Ranked()); err != nil {
			return err
		}
		fmt.Printf("Ranked %d proteins\n", hits.Len())
	}

	if err := files.WriteFooters(); err != nil {
		return err
	}
	return files.Close()
}
