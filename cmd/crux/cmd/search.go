package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/output"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/reader/ms2"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/search"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/sqt"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/xcorr"
)

var searchCmd = &cobra.Command{
	Use:   "search <ms2 file> <peptide file>",
	Short: "Score spectra against a peptide list with XCorr",
	Long: `Search every spectrum in an MS2 file against the peptides whose mass
falls within the precursor window, together with shuffled decoys of each
candidate. Results are written one spectrum at a time to the target and
decoy output channels.

The peptide file is tab-delimited with a "sequence" column and optional
"protein id" and "flanking aa" columns.

Examples:
  # Search with one decoy channel
  crux search run1.ms2 peptides.txt

  # Three decoy channels, parallel cross-correlation, SQLite output
  crux search run1.ms2 peptides.txt --num-decoy-files 3 --xcorr-backend parallel --sqlite-output`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args, output.CommandSearch)
	},
}

var sequestSearchCmd = &cobra.Command{
	Use:   "sequest-search <ms2 file> <peptide file>",
	Short: "Score spectra as search does, writing SEQUEST-style output files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args, output.CommandSequest)
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, sequestSearchCmd} {
		rootCmd.AddCommand(c)

		addBackendFlags(c)
		addDecoyFlags(c)
		addTopMatchFlag(c)
		addModsFlag(c)
		c.Flags().Float64Var(&precursorWindow, "precursor-window", defaults.PrecursorWindow, "Candidate window around the precursor neutral mass (Da)")
		c.Flags().StringVar(&spectrumCharge, "spectrum-charge", defaults.SpectrumCharge, "Charge to search: 'all' or a single charge")
		c.Flags().IntVar(&maxMatches, "max-matches", defaults.MaxMatches, "Maximum matches kept per spectrum and charge (0 = no limit)")
		c.Flags().BoolVar(&sqliteOutput, "sqlite-output", defaults.SQLiteOutput, "Also write a PSM SQLite database per channel")
		c.Flags().Float64Var(&spectrumMinMZ, "spectrum-min-mz", defaults.SpectrumMinMZ, "Ignore peaks below this m/z")
		c.Flags().Float64Var(&spectrumMaxMZ, "spectrum-max-mz", defaults.SpectrumMaxMZ, "Ignore peaks above this m/z (0 = no limit)")
		c.Flags().IntVar(&topPeaks, "top-peaks", defaults.TopPeaks, "Keep only the N most intense peaks (0 = no limit)")
		c.Flags().IntVar(&minPeaks, "min-peaks", defaults.MinPeaks, "Skip spectra with fewer peaks after filtering")
	}
}

func runSearch(cmd *cobra.Command, args []string, command output.Command) error {
	spectrumFile, peptideFile := args[0], args[1]
	start := time.Now()

	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}

	pepFile, err := os.Open(peptideFile)
	if err != nil {
		return fmt.Errorf("failed to open peptide file: %w", err)
	}
	db, err := search.ReadPeptides(pepFile, modDB)
	pepFile.Close()
	if err != nil {
		return fmt.Errorf("failed to read peptides: %w", err)
	}
	fmt.Printf("Loaded %d peptides from %d proteins\n", db.Len(), db.NumProteins())

	backend, err := xcorr.NewBackend(params.XCorrBackend, params.XCorrWorkers)
	if err != nil {
		return err
	}
	charges, err := params.Charges()
	if err != nil {
		return err
	}

	inFile, err := os.Open(spectrumFile)
	if err != nil {
		return fmt.Errorf("failed to open spectrum file: %w", err)
	}
	defer inFile.Close()

	if err := prepareOutputDir(); err != nil {
		return err
	}
	files, err := output.Open(output.Options{
		Dir:                params.OutputDir,
		Fileroot:           params.Fileroot,
		Command:            command,
		NumDecoyFiles:      params.NumDecoyFiles,
		Overwrite:          params.Overwrite,
		MatchesPerSpectrum: params.TopMatch,
		SQLite:             params.SQLiteOutput,
		SpectrumFile:       spectrumFile,
		SQTHeader: sqt.Header{
			StartTime:          start.Format(time.ANSIC),
			Database:           peptideFile,
			PrecursorTolerance: params.PrecursorWindow,
			FragmentTolerance:  0.5,
			Enzyme:             "trypsin",
			TopMatches:         params.TopMatch,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open output files: %w", err)
	}
	defer files.Close()

	if err := files.WriteHeaders(db.NumProteins()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	searcher := search.New(db, search.Options{
		Backend:         backend,
		PrecursorWindow: params.PrecursorWindow,
		NumDecoys:       params.NumDecoyFiles,
		Charges:         charges,
		MaxMatches:      params.MaxMatches,
		Filter:          params.Filter(),
	})

	fmt.Printf("Searching %s with the %s backend...\n", spectrumFile, backend.Name())
	summary, err := searcher.Run(cmd.Context(), ms2.NewReader(inFile, spectrumFile), files)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if err := files.WriteFooters(); err != nil {
		return fmt.Errorf("failed to write footers: %w", err)
	}
	if err := files.Close(); err != nil {
		return fmt.Errorf("failed to close output files: %w", err)
	}

	fmt.Printf("\nSearch complete!\n")
	fmt.Printf("  Spectra read: %d\n", summary.Spectra)
	fmt.Printf("  Spectra skipped: %d\n", summary.Skipped)
	fmt.Printf("  Spectrum charges searched: %d\n", summary.Searched)
	fmt.Printf("  Target matches: %d\n", summary.Matches)
	fmt.Printf("  Elapsed: %s\n", time.Since(start).Round(time.Millisecond))
	for _, path := range files.Paths() {
		fmt.Printf("  Wrote %s\n", path)
	}
	return nil
}
