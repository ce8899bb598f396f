// Package config holds the run parameters shared by every crux command. Values
// come from built-in defaults, an optional YAML parameter file, and finally
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/filter"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/preprocess"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/rtime"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/xcorr"
)

// ErrInvalidParameter is returned by Validate for any out-of-range value.
var ErrInvalidParameter = errors.New("invalid parameter")

// Params holds all run parameters.
type Params struct {
	OutputDir     string `yaml:"output-dir"`
	Fileroot      string `yaml:"fileroot"`
	Overwrite     bool   `yaml:"overwrite"`
	NumDecoyFiles int    `yaml:"num-decoy-files"`
	TopMatch      int    `yaml:"top-match"`
	StopAfter     string `yaml:"stop-after"`

	XCorrBackend string `yaml:"xcorr-backend"` // sequential or parallel
	XCorrWorkers int    `yaml:"xcorr-workers"` // 0 = GOMAXPROCS

	PrecursorWindow float64 `yaml:"precursor-window"` // Da, candidate selection
	SpectrumCharge  string  `yaml:"spectrum-charge"`  // "all" or a single charge
	MaxMatches      int     `yaml:"max-matches"`      // per collection, 0 = unbounded

	SpectrumMinMZ float64 `yaml:"spectrum-min-mz"`
	SpectrumMaxMZ float64 `yaml:"spectrum-max-mz"` // 0 = no limit
	TopPeaks      int     `yaml:"top-peaks"`       // 0 = keep all
	MinPeaks      int     `yaml:"min-peaks"`

	SQLiteOutput   bool   `yaml:"sqlite-output"`
	FeatureFile    bool   `yaml:"feature-file"`
	RTimePredictor string `yaml:"rtime-predictor"`
	ModsFile       string `yaml:"mods-file"`

	Verbosity int    `yaml:"verbosity"`
	LogFormat string `yaml:"log-format"`
}

// Default returns the built-in parameter values.
func Default() *Params {
	return &Params{
		OutputDir:       "crux-output",
		NumDecoyFiles:   1,
		TopMatch:        5,
		StopAfter:       preprocess.StageXCorr.String(),
		XCorrBackend:    xcorr.BackendSequential,
		PrecursorWindow: 3.0,
		SpectrumCharge:  "all",
		MinPeaks:        20,
		FeatureFile:     true,
		RTimePredictor:  rtime.KindNull,
		Verbosity:       30,
		LogFormat:       "text",
	}
}

// Load reads a YAML parameter file over the defaults.
func Load(path string) (*Params, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse parameter file %s: %w", path, err)
	}
	return p, nil
}

// Validate checks every parameter. Invalid values are configuration errors
// and must be reported before any output is produced.
func (p *Params) Validate() error {
	var errs []string

	if _, err := preprocess.ParseStage(p.StopAfter); err != nil {
		errs = append(errs, fmt.Sprintf("stop-after: %v", err))
	}
	if p.NumDecoyFiles < 0 {
		errs = append(errs, fmt.Sprintf("num-decoy-files must be non-negative, got %d", p.NumDecoyFiles))
	}
	if p.TopMatch <= 0 {
		errs = append(errs, fmt.Sprintf("top-match must be positive, got %d", p.TopMatch))
	}
	if p.XCorrWorkers < 0 {
		errs = append(errs, fmt.Sprintf("xcorr-workers must be non-negative, got %d", p.XCorrWorkers))
	}
	if _, err := xcorr.NewBackend(p.XCorrBackend, p.XCorrWorkers); err != nil {
		errs = append(errs, fmt.Sprintf("xcorr-backend: %v", err))
	}
	if p.PrecursorWindow <= 0 {
		errs = append(errs, fmt.Sprintf("precursor-window must be positive, got %g", p.PrecursorWindow))
	}
	if _, err := p.Charges(); err != nil {
		errs = append(errs, fmt.Sprintf("spectrum-charge: %v", err))
	}
	if p.MaxMatches < 0 {
		errs = append(errs, fmt.Sprintf("max-matches must be non-negative, got %d", p.MaxMatches))
	}
	if p.SpectrumMinMZ < 0 || p.SpectrumMaxMZ < 0 {
		errs = append(errs, fmt.Sprintf("spectrum m/z limits must be non-negative, got %g-%g", p.SpectrumMinMZ, p.SpectrumMaxMZ))
	}
	if p.SpectrumMaxMZ > 0 && p.SpectrumMaxMZ <= p.SpectrumMinMZ {
		errs = append(errs, fmt.Sprintf("spectrum-max-mz %g must exceed spectrum-min-mz %g", p.SpectrumMaxMZ, p.SpectrumMinMZ))
	}
	if p.TopPeaks < 0 || p.MinPeaks < 0 {
		errs = append(errs, fmt.Sprintf("peak counts must be non-negative, got top-peaks %d min-peaks %d", p.TopPeaks, p.MinPeaks))
	}
	if _, err := rtime.New(p.RTimePredictor); err != nil {
		errs = append(errs, fmt.Sprintf("rtime-predictor: %v", err))
	}
	if p.LogFormat != "text" && p.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("log-format must be text or json, got '%s'", p.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, strings.Join(errs, "; "))
	}
	return nil
}

// Filter returns the peak filter configured by the spectrum parameters.
func (p *Params) Filter() *filter.Config {
	return &filter.Config{
		MinMZ:    p.SpectrumMinMZ,
		MaxMZ:    p.SpectrumMaxMZ,
		TopN:     p.TopPeaks,
		MinPeaks: p.MinPeaks,
	}
}

// Charges returns the charge filter: nil means every charge on the spectrum.
func (p *Params) Charges() ([]int, error) {
	if p.SpectrumCharge == "" || p.SpectrumCharge == "all" {
		return nil, nil
	}
	z, err := strconv.Atoi(p.SpectrumCharge)
	if err != nil || z <= 0 {
		return nil, fmt.Errorf("must be 'all' or a positive integer, got '%s'", p.SpectrumCharge)
	}
	return []int{z}, nil
}
