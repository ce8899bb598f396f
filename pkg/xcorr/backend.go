// Package xcorr implements the cross-correlation transform applied to
// preprocessed spectra and the XCorr and Sp scores computed against
// theoretical fragment ion arrays.
//
// Two interchangeable backends compute the transform. Sequential is the
// reference: for every bin it sums the in-range neighbors directly. Parallel
// derives the same window sums from prefix sums and splits the bins across
// goroutines. The two differ only in floating-point summation order and must
// agree within DefaultEpsilon RMS error.
package xcorr

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

const (
	// MaxOffset is the half-width of the cross-correlation window, in bins.
	MaxOffset = 75
	// DefaultEpsilon bounds the RMS error between backends.
	DefaultEpsilon = 1e-4

	BackendSequential = "sequential"
	BackendParallel   = "parallel"
)

var (
	ErrUnknownBackend = errors.New("unknown cross-correlation backend")
	ErrInvalidOffset  = errors.New("invalid cross-correlation offset")
	ErrLengthMismatch = errors.New("array length mismatch")
	ErrNotEquivalent  = errors.New("backend output differs from sequential reference")
)

// Backend computes the cross-correlation transform.
type Backend interface {
	Name() string
	// CrossCorrelate returns a new array of the same length where each bin
	// holds its original intensity minus the mean of its 2*maxOffset
	// neighbors. Neighbor indices <= 0 or >= len(in) are skipped.
	CrossCorrelate(in []float64, maxOffset int) ([]float64, error)
}

// NewBackend returns the backend registered under name. workers only applies
// to the parallel backend; 0 uses GOMAXPROCS.
func NewBackend(name string, workers int) (Backend, error) {
	switch name {
	case BackendSequential, "":
		return Sequential{}, nil
	case BackendParallel:
		if workers < 0 {
			return nil, fmt.Errorf("%w: %d workers", ErrUnknownBackend, workers)
		}
		return Parallel{Workers: workers}, nil
	default:
		return nil, fmt.Errorf("%w '%s': must be %s or %s", ErrUnknownBackend, name, BackendSequential, BackendParallel)
	}
}

// Sequential is the reference implementation.
type Sequential struct{}

func (Sequential) Name() string { return BackendSequential }

func (Sequential) CrossCorrelate(in []float64, maxOffset int) ([]float64, error) {
	if maxOffset < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, maxOffset)
	}
	n := len(in)
	out := make([]float64, n)
	denom := float64(2 * maxOffset)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := i - maxOffset; j <= i+maxOffset; j++ {
			if j <= 0 || j >= n || j == i {
				continue
			}
			sum += in[j]
		}
		out[i] = in[i] - sum/denom
	}
	return out, nil
}

// Parallel computes window sums from a prefix-sum table and processes
// contiguous chunks of bins concurrently. Bins are independent, so chunks
// share only read-only inputs and write disjoint output ranges.
type Parallel struct {
	Workers   int // 0 = GOMAXPROCS
	ChunkSize int // bins per task, 0 = len/workers
}

func (Parallel) Name() string { return BackendParallel }

func (p Parallel) CrossCorrelate(in []float64, maxOffset int) ([]float64, error) {
	if maxOffset < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, maxOffset)
	}
	n := len(in)
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}

	// prefix[k] = in[1] + ... + in[k-1]; bin 0 never contributes.
	prefix := make([]float64, n+1)
	for k := 1; k <= n; k++ {
		prefix[k] = prefix[k-1]
		if k-1 > 0 {
			prefix[k] += in[k-1]
		}
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := p.ChunkSize
	if chunk <= 0 {
		chunk = (n + workers - 1) / workers
	}

	denom := float64(2 * maxOffset)
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		lo, hi := start, start+chunk
		if hi > n {
			hi = n
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				first := max(i-maxOffset, 1)
				last := min(i+maxOffset, n-1)
				sum := 0.0
				if first <= last {
					sum = prefix[last+1] - prefix[first]
					if i >= first && i <= last {
						sum -= in[i]
					}
				}
				out[i] = in[i] - sum/denom
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RMSError returns the root-mean-square difference between two arrays.
func RMSError(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a))), nil
}

// Validate cross-checks a backend against the sequential reference on one
// input and fails unless the RMS error is below eps.
func Validate(backend Backend, in []float64, maxOffset int, eps float64) error {
	want, err := Sequential{}.CrossCorrelate(in, maxOffset)
	if err != nil {
		return err
	}
	got, err := backend.CrossCorrelate(in, maxOffset)
	if err != nil {
		return fmt.Errorf("%s backend: %w", backend.Name(), err)
	}
	rms, err := RMSError(want, got)
	if err != nil {
		return err
	}
	if rms >= eps {
		return fmt.Errorf("%w: %s rms error %g >= %g", ErrNotEquivalent, backend.Name(), rms, eps)
	}
	return nil
}
