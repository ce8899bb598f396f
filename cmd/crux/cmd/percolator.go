package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hsiaoyi0504/crux-toolkit/internal/logging"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/output"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/rtime"
)

var percolatorCmd = &cobra.Command{
	Use:   "percolator <target matches> <decoy matches>",
	Short: "Compute re-ranking features for search results",
	Long: `Read the tab-delimited target and decoy files of a search and write one
feature vector per match to percolator.features.txt, labelled 1 for targets
and -1 for decoys. The matches themselves are copied to the percolator
target and decoy files for a re-ranker to fill in.

Features: ` + strings.Join(match.FeatureNames, ", "),
	Args: cobra.ExactArgs(2),
	RunE: runPercolator,
}

func init() {
	rootCmd.AddCommand(percolatorCmd)

	addTopMatchFlag(percolatorCmd)
	addModsFlag(percolatorCmd)
	percolatorCmd.Flags().BoolVar(&featureFile, "feature-file", defaults.FeatureFile, "Write the feature file")
	percolatorCmd.Flags().StringVar(&rtimePredictor, "rtime-predictor", defaults.RTimePredictor, "Retention-time predictor for the dRT feature: null or krokhin")
}

func runPercolator(cmd *cobra.Command, args []string) error {
	log := logging.New("percolator")

	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	predictor, err := rtime.New(params.RTimePredictor)
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
	if target, err = topRanked(target, match.XCorr, params.TopMatch); err != nil {
		return err
	}
	if decoy, err = topRanked(decoy, match.XCorr, params.TopMatch); err != nil {
		return err
	}

	var sequences []string
	for _, m := range target.Matches() {
		sequences = append(sequences, m.Sequence())
	}
	log.Info("retention-time predictor", "name", predictor.Name(), "max_diff", rtime.MaxDiff(predictor, sequences))

	if err := prepareOutputDir(); err != nil {
		return err
	}
	files, err := output.Open(output.Options{
		Dir:                params.OutputDir,
		Fileroot:           params.Fileroot,
		Command:            output.CommandPercolator,
		NumDecoyFiles:      1,
		Overwrite:          params.Overwrite,
		MatchesPerSpectrum: params.TopMatch,
		FeatureFile:        params.FeatureFile,
		SpectrumFile:       args[0],
	})
	if err != nil {
		return fmt.Errorf("failed to open output files: %w", err)
	}
	defer files.Close()

	if err := files.WriteHeaders(0); err != nil {
		return err
	}
	if err := files.WriteFeatureHeader(match.FeatureNames); err != nil {
		return err
	}

	rows := 0
	for _, c := range []*match.Collection{target, decoy} {
		for _, m := range c.Matches() {
			features, err := match.Features(m, predictor)
			if err != nil {
				return fmt.Errorf("scan %d %s: %w", m.Scan(), m.Sequence(), err)
			}
			if err := files.WriteMatchFeatures(m, features); err != nil {
				return err
			}
			rows++
		}
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

	fmt.Printf("Computed %d features for %d matches\n", len(match.FeatureNames), rows)
	return nil
}
