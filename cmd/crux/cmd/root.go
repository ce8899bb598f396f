// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hsiaoyi0504/crux-toolkit/internal/logging"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/config"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/reader/delimited"
)

var (
	// Flags shared by every command
	paramFile string
	outputDir string
	fileroot  string
	overwrite bool
	verbosity int
	logFormat string

	// Flags shared by several commands
	numDecoyFiles   int
	topMatch        int
	stopAfter       string
	xcorrBackend    string
	xcorrWorkers    int
	precursorWindow float64
	spectrumCharge  string
	maxMatches      int
	sqliteOutput    bool
	featureFile     bool
	rtimePredictor  string
	modsFile        string
	spectrumMinMZ   float64
	spectrumMaxMZ   float64
	topPeaks        int
	minPeaks        int

	// params holds the merged parameters of the running command.
	params *config.Params
)

var defaults = config.Default()

var rootCmd = &cobra.Command{
	Use:   "crux",
	Short: "crux - peptide-spectrum matching toolkit",
	Long: `crux scores MS2 spectra against candidate peptides with XCorr and writes
target and decoy results as tab-delimited, SQT, pepXML and SQLite files.

Parameters are read from built-in defaults, then an optional YAML
parameter file, then command-line flags.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadParams,
}

// Execute runs the command line under ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&paramFile, "parameter-file", "", "YAML parameter file")
	flags.StringVar(&outputDir, "output-dir", defaults.OutputDir, "Directory for output files (created if missing)")
	flags.StringVar(&fileroot, "fileroot", defaults.Fileroot, "Prefix for output file names")
	flags.BoolVar(&overwrite, "overwrite", defaults.Overwrite, "Replace existing output files")
	flags.IntVar(&verbosity, "verbosity", defaults.Verbosity, "Logging verbosity 0-60 (40 = info, 50+ = debug)")
	flags.StringVar(&logFormat, "log-format", defaults.LogFormat, "Log format: text or json")
}

// loadParams merges defaults, the parameter file and changed flags, then
// configures logging.
func loadParams(cmd *cobra.Command, args []string) error {
	p, err := config.Load(paramFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, p)
	if err := p.Validate(); err != nil {
		return err
	}
	logging.Init(logging.LevelFromVerbosity(p.Verbosity), p.LogFormat)
	params = p
	return nil
}

// applyFlags copies every flag set on the command line into p. Flags the
// command does not define are never marked changed.
func applyFlags(cmd *cobra.Command, p *config.Params) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("output-dir", func() { p.OutputDir = outputDir })
	set("fileroot", func() { p.Fileroot = fileroot })
	set("overwrite", func() { p.Overwrite = overwrite })
	set("verbosity", func() { p.Verbosity = verbosity })
	set("log-format", func() { p.LogFormat = logFormat })
	set("num-decoy-files", func() { p.NumDecoyFiles = numDecoyFiles })
	set("top-match", func() { p.TopMatch = topMatch })
	set("stop-after", func() { p.StopAfter = stopAfter })
	set("xcorr-backend", func() { p.XCorrBackend = xcorrBackend })
	set("xcorr-workers", func() { p.XCorrWorkers = xcorrWorkers })
	set("precursor-window", func() { p.PrecursorWindow = precursorWindow })
	set("spectrum-charge", func() { p.SpectrumCharge = spectrumCharge })
	set("max-matches", func() { p.MaxMatches = maxMatches })
	set("sqlite-output", func() { p.SQLiteOutput = sqliteOutput })
	set("feature-file", func() { p.FeatureFile = featureFile })
	set("rtime-predictor", func() { p.RTimePredictor = rtimePredictor })
	set("mods-file", func() { p.ModsFile = modsFile })
	set("spectrum-min-mz", func() { p.SpectrumMinMZ = spectrumMinMZ })
	set("spectrum-max-mz", func() { p.SpectrumMaxMZ = spectrumMaxMZ })
	set("top-peaks", func() { p.TopPeaks = topPeaks })
	set("min-peaks", func() { p.MinPeaks = minPeaks })
}

func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&xcorrBackend, "xcorr-backend", defaults.XCorrBackend, "Cross-correlation backend: sequential or parallel")
	cmd.Flags().IntVar(&xcorrWorkers, "xcorr-workers", defaults.XCorrWorkers, "Workers for the parallel backend (0 = GOMAXPROCS)")
}

func addDecoyFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&numDecoyFiles, "num-decoy-files", defaults.NumDecoyFiles, "Number of decoy output channels")
}

func addTopMatchFlag(cmd *cobra.Command) {
	cmd.Flags().IntVar(&topMatch, "top-match", defaults.TopMatch, "Matches written per spectrum")
}

func addModsFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&modsFile, "mods-file", defaults.ModsFile, "CSV of extra modifications (mod,massshift[,symbol])")
}

// prepareOutputDir creates the output directory.
func prepareOutputDir() error {
	if params.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(params.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// outputPath places name in the output directory behind the fileroot.
func outputPath(name string) string {
	if params.Fileroot != "" {
		name = params.Fileroot + "." + name
	}
	return filepath.Join(params.OutputDir, name)
}

// createOutputFile opens a new file in the output directory, refusing to
// replace an existing one unless overwrite is set.
func createOutputFile(name string) (*os.File, error) {
	path := outputPath(name)
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if params.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

func loadModDatabase() (*core.ModDatabase, error) {
	modDB := core.DefaultModDatabase()
	if params.ModsFile == "" {
		return modDB, nil
	}

	f, err := os.Open(params.ModsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open modifications file: %w", err)
	}
	defer f.Close()

	if err := modDB.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", params.ModsFile, err)
	}
	return modDB, nil
}

// readMatchFile loads a tab-delimited match file written by a search.
func readMatchFile(path string, modDB *core.ModDatabase, decoy bool) (*match.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open match file: %w", err)
	}
	defer f.Close()

	r, err := delimited.NewReader(f, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c, err := delimited.ReadMatches(r, modDB, decoy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// topRanked returns the matches of c ranked at most n by t, in a collection
// with the same registered score types. Unranked matches are kept.
func topRanked(c *match.Collection, t match.ScoreType, n int) (*match.Collection, error) {
	out := match.NewCollection(0)
	out.RegisterScores(c.ScoredTypes()...)
	for _, m := range c.Matches() {
		if r := m.Rank(t); r != match.NotRanked && r > n {
			continue
		}
		if err := out.Add(m); err != nil {
			return nil, err
		}
	}
	return out, nil
}
