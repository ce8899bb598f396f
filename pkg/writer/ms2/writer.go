// Package ms2 writes processed spectra in MS2 text format.
package ms2

import (
	"bufio"
	"fmt"
	"io"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
)

// ProcessedComment is the header comment of preprocessed output.
const ProcessedComment = "Spectra processed as for Xcorr"

// Writer writes MS2 records.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates an MS2 writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteHeader writes one H Comment line per comment.
func (w *Writer) WriteHeader(comments ...string) error {
	for _, c := range comments {
		if _, err := fmt.Fprintf(w.w, "H\tComment\t%s\n", c); err != nil {
			return fmt.Errorf("failed to write MS2 header: %w", err)
		}
	}
	return nil
}

// WriteSpectrum writes a spectrum with its peaks as read.
func (w *Writer) WriteSpectrum(spec *core.Spectrum) error {
	if err := w.writeScan(spec, spec.Charges); err != nil {
		return err
	}
	for _, p := range spec.Peaks {
		if _, err := fmt.Fprintf(w.w, "%.4f %.4f\n", p.MZ, p.Intensity); err != nil {
			return err
		}
	}
	return nil
}

// WriteProcessed writes a spectrum whose peaks are replaced by the non-zero
// bins of a processed intensity array, each at its bin center m/z.
func (w *Writer) WriteProcessed(spec *core.Spectrum, charges []int, processed []float64) error {
	if err := w.writeScan(spec, charges); err != nil {
		return err
	}
	for bin, v := range processed {
		if v == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w.w, "%.2f %.4f\n", core.BinToMZ(bin), v); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeScan(spec *core.Spectrum, charges []int) error {
	if _, err := fmt.Fprintf(w.w, "S\t%06d\t%06d\t%.4f\n", spec.FirstScan, spec.LastScan, spec.PrecursorMZ); err != nil {
		return fmt.Errorf("failed to write scan %d: %w", spec.FirstScan, err)
	}
	if spec.RetentionTime != nil {
		if _, err := fmt.Fprintf(w.w, "I\tRTime\t%.4f\n", *spec.RetentionTime); err != nil {
			return err
		}
	}
	for _, z := range charges {
		if _, err := fmt.Fprintf(w.w, "Z\t%d\t%.4f\n", z, spec.SinglyChargedMass(z)); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
