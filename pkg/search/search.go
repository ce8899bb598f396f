// Package search runs the spectrum-at-a-time search loop: each spectrum is
// preprocessed, scored against every candidate peptide and its shuffled
// decoys, ranked, and written before the next spectrum is read.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hsiaoyi0504/crux-toolkit/internal/logging"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/filter"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/preprocess"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/xcorr"
)

// DefaultCharges are tried for spectra without Z lines.
var DefaultCharges = []int{2, 3}

// Options configures a Searcher.
type Options struct {
	Backend         xcorr.Backend
	PrecursorWindow float64 // Da around the precursor neutral mass
	NumDecoys       int     // decoy collections per spectrum and charge
	Charges         []int   // nil searches the spectrum's own charges
	MaxMatches      int     // collection capacity, 0 = unbounded
	Filter          *filter.Config
}

// Result holds the ranked collections of one spectrum and charge.
type Result struct {
	Spectrum   *core.Spectrum
	Charge     int
	Candidates int
	Target     *match.Collection
	Decoys     []*match.Collection
}

// Sink receives each result as soon as it is ranked.
type Sink interface {
	WriteMatches(target *match.Collection, decoys []*match.Collection, rankType match.ScoreType, spec *core.Spectrum) error
}

// SpectrumSource yields spectra one at a time.
type SpectrumSource interface {
	Next() bool
	Spectrum() *core.Spectrum
	Err() error
}

// Summary counts the work done by Run.
type Summary struct {
	Spectra  int
	Skipped  int // invalid spectra and spectra rejected by the peak filter
	Searched int // spectrum and charge pairs with at least one candidate
	Matches  int
}

// Searcher scores spectra against a peptide database.
type Searcher struct {
	db   *Database
	opts Options
	pre  *preprocess.Preprocessor
	log  *slog.Logger
}

// New creates a Searcher.
func New(db *Database, opts Options) *Searcher {
	return &Searcher{
		db:   db,
		opts: opts,
		pre:  preprocess.New(opts.Backend),
		log:  logging.New("search"),
	}
}

func (s *Searcher) charges(spec *core.Spectrum) []int {
	if len(s.opts.Charges) > 0 {
		return s.opts.Charges
	}
	if len(spec.Charges) > 0 {
		return spec.Charges
	}
	return DefaultCharges
}

// SearchSpectrum scores one spectrum under each of its charges.
func (s *Searcher) SearchSpectrum(spec *core.Spectrum) ([]Result, error) {
	var results []Result
	for _, charge := range s.charges(spec) {
		r, err := s.searchCharge(spec, charge)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Searcher) searchCharge(spec *core.Spectrum, charge int) (Result, error) {
	observed, _, err := s.pre.Preprocess(spec, charge, preprocess.StageXCorr)
	if err != nil {
		return Result{}, err
	}

	candidates := s.db.Candidates(spec.NeutralMass(charge), s.opts.PrecursorWindow)
	r := Result{Spectrum: spec, Charge: charge, Candidates: len(candidates)}

	r.Target, err = s.score(spec, charge, observed, candidates)
	if err != nil {
		return Result{}, err
	}
	for i := 0; i < s.opts.NumDecoys; i++ {
		decoys := make([]*core.Peptide, len(candidates))
		for j, p := range candidates {
			decoys[j] = p.Shuffle(i)
		}
		c, err := s.score(spec, charge, observed, decoys)
		if err != nil {
			return Result{}, err
		}
		r.Decoys = append(r.Decoys, c)
	}

	s.log.Debug("searched spectrum", "scan", spec.FirstScan, "charge", charge, "candidates", len(candidates))
	return r, nil
}

func (s *Searcher) score(spec *core.Spectrum, charge int, observed []float64, peptides []*core.Peptide) (*match.Collection, error) {
	c := match.NewCollection(s.opts.MaxMatches)
	c.RegisterScores(match.Sp, match.XCorr)

	for _, p := range peptides {
		xc, err := xcorr.ScorePeptide(p, charge, observed)
		if err != nil {
			return nil, fmt.Errorf("scan %d peptide %s: %w", spec.FirstScan, p.Sequence, err)
		}
		sp := xcorr.ScoreSp(spec, p, charge)

		m := match.New(p, spec, charge)
		m.SetScore(match.XCorr, xc)
		m.SetScore(match.Sp, sp.Score)
		m.ByIonsMatched, m.ByIonsPossible = sp.Matched, sp.Possible
		if err := c.Add(m); err != nil {
			return nil, err
		}
	}

	c.SetExperimentSize(len(peptides))
	if err := c.Rank(match.Sp); err != nil {
		return nil, err
	}
	if err := c.Rank(match.XCorr); err != nil {
		return nil, err
	}
	if err := c.ComputeDeltaCn(match.XCorr); err != nil {
		return nil, err
	}
	if err := c.MarkBestPerPeptide(match.XCorr); err != nil {
		return nil, err
	}
	return c, nil
}

// Run searches every spectrum from src and hands each ranked result to sink
// before reading the next spectrum.
func (s *Searcher) Run(ctx context.Context, src SpectrumSource, sink Sink) (Summary, error) {
	var sum Summary
	for src.Next() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		spec := src.Spectrum()
		sum.Spectra++

		if err := spec.Validate(); err != nil {
			s.log.Warn("skipping invalid spectrum", "scan", spec.FirstScan, "error", err)
			sum.Skipped++
			continue
		}

		if s.opts.Filter != nil {
			filtered, err := s.opts.Filter.Apply(spec)
			if errors.Is(err, filter.ErrTooFewPeaks) {
				s.log.Debug("skipping spectrum", "scan", spec.FirstScan, "error", err)
				sum.Skipped++
				continue
			}
			if err != nil {
				return sum, err
			}
			spec = filtered
		}

		results, err := s.SearchSpectrum(spec)
		if err != nil {
			return sum, err
		}
		for _, r := range results {
			if r.Candidates == 0 {
				continue
			}
			sum.Searched++
			sum.Matches += r.Target.Len()
			if err := sink.WriteMatches(r.Target, r.Decoys, match.XCorr, r.Spectrum); err != nil {
				return sum, fmt.Errorf("scan %d charge %d: %w", spec.FirstScan, r.Charge, err)
			}
		}
	}
	if err := src.Err(); err != nil {
		return sum, fmt.Errorf("failed to read spectra: %w", err)
	}
	return sum, nil
}
