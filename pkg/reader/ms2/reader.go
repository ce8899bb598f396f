// Package ms2 provides a streaming reader for MS2 text format spectra
package ms2

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
)

// Reader provides streaming access to MS2 files. Header (H) lines are
// collected and available through Headers.
type Reader struct {
	scanner     *bufio.Scanner
	sourceFile  string
	lineNum     int
	pending     string // S line that starts the next spectrum
	headers     []string
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MS2 reader. sourceFile is recorded on every spectrum.
func NewReader(r io.Reader, sourceFile string) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{
		scanner:    scanner,
		sourceFile: sourceFile,
	}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// Headers returns the H lines read so far, without the leading "H\t".
func (r *Reader) Headers() []string {
	return r.headers
}

func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	var spec *core.Spectrum

	if r.pending != "" {
		s, err := r.parseScanLine(r.pending)
		if err != nil {
			return nil, err
		}
		spec = s
		r.pending = ""
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		switch line[0] {
		case 'H':
			r.headers = append(r.headers, strings.TrimSpace(strings.TrimPrefix(line, "H")))
		case 'S':
			if spec != nil {
				r.pending = line
				return spec, nil
			}
			s, err := r.parseScanLine(line)
			if err != nil {
				return nil, err
			}
			spec = s
		case 'I':
			if spec == nil {
				return nil, fmt.Errorf("line %d: I line before first S line", r.lineNum)
			}
			if err := r.parseInfo(spec, line); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
		case 'Z':
			if spec == nil {
				return nil, fmt.Errorf("line %d: Z line before first S line", r.lineNum)
			}
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: invalid Z line '%s'", r.lineNum, line)
			}
			z, err := strconv.Atoi(fields[1])
			if err != nil || z <= 0 {
				return nil, fmt.Errorf("line %d: invalid charge '%s'", r.lineNum, fields[1])
			}
			spec.Charges = append(spec.Charges, z)
		case 'D':
			// Charge-dependent analysis lines carry nothing we use.
		default:
			if spec == nil {
				return nil, fmt.Errorf("line %d: peak line before first S line", r.lineNum)
			}
			peak, err := parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			spec.Peaks = append(spec.Peaks, peak)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if spec != nil {
		return spec, nil
	}
	return nil, io.EOF
}

// parseScanLine parses "S <first> <last> <precursor m/z>".
func (r *Reader) parseScanLine(line string) (*core.Spectrum, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, fmt.Errorf("line %d: invalid S line '%s'", r.lineNum, line)
	}
	first, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid first scan: %w", r.lineNum, err)
	}
	last, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid last scan: %w", r.lineNum, err)
	}
	mz, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid precursor m/z: %w", r.lineNum, err)
	}
	return &core.Spectrum{
		FirstScan:   first,
		LastScan:    last,
		PrecursorMZ: mz,
		Peaks:       []core.Peak{},
		SourceFile:  r.sourceFile,
	}, nil
}

func (r *Reader) parseInfo(spec *core.Spectrum, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil
	}
	switch fields[1] {
	case "RTime", "RetTime":
		rt, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return fmt.Errorf("invalid retention time '%s': %w", fields[2], err)
		}
		spec.RetentionTime = &rt
	}
	return nil
}

// parsePeak parses a peak line (format: "mz intensity")
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak line '%s'", line)
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z '%s': %w", fields[0], err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity '%s': %w", fields[1], err)
	}

	return core.Peak{MZ: mz, Intensity: intensity}, nil
}
