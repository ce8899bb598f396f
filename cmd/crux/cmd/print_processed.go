package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hsiaoyi0504/crux-toolkit/internal/logging"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/preprocess"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/reader/ms2"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/search"
	ms2writer "github.com/hsiaoyi0504/crux-toolkit/pkg/writer/ms2"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/xcorr"
)

var printProcessedCmd = &cobra.Command{
	Use:   "print-processed-spectra <ms2 file> <output file>",
	Short: "Process spectra as for XCorr scoring and print them in MS2 format",
	Long: `Preprocess every spectrum of an MS2 file once per charge, exactly as the
XCorr scorer does, and write the non-zero bins as peaks in MS2 format. The
output file is created in the output directory behind the fileroot.

--stop-after ends preprocessing early at one of: ` + strings.Join(preprocess.StageNames(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: runPrintProcessed,
}

func init() {
	rootCmd.AddCommand(printProcessedCmd)

	addBackendFlags(printProcessedCmd)
	printProcessedCmd.Flags().StringVar(&stopAfter, "stop-after", defaults.StopAfter, "Last preprocessing stage to apply")
}

func runPrintProcessed(cmd *cobra.Command, args []string) error {
	inputFile, outputName := args[0], args[1]
	log := logging.New("print-processed-spectra")

	stage, err := preprocess.ParseStage(params.StopAfter)
	if err != nil {
		return err
	}
	backend, err := xcorr.NewBackend(params.XCorrBackend, params.XCorrWorkers)
	if err != nil {
		return err
	}
	pre := preprocess.New(backend)

	inFile, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer inFile.Close()

	if err := prepareOutputDir(); err != nil {
		return err
	}
	outFile, err := createOutputFile(outputName)
	if err != nil {
		return err
	}
	defer outFile.Close()

	w := ms2writer.NewWriter(outFile)
	if err := w.WriteHeader(ms2writer.ProcessedComment); err != nil {
		return err
	}

	fmt.Printf("Processing %s through %s...\n", inputFile, stage)
	reader := ms2.NewReader(inFile, inputFile)
	count := 0
	for reader.Next() {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		spec := reader.Spectrum()
		charges := spec.Charges
		if len(charges) == 0 {
			charges = search.DefaultCharges
		}
		for _, z := range charges {
			log.Debug("processing spectrum", "scan", spec.FirstScan, "charge", z)
			processed, _, err := pre.Preprocess(spec, z, stage)
			if err != nil {
				return fmt.Errorf("scan %d charge %d: %w", spec.FirstScan, z, err)
			}
			if err := w.WriteProcessed(spec, []int{z}, processed); err != nil {
				return err
			}
			count++
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("failed to read spectra: %w", err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", outFile.Name(), err)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", outFile.Name(), err)
	}

	fmt.Printf("Wrote %d processed spectra to %s\n", count, outFile.Name())
	return nil
}
