package ms2

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	ms2reader "github.com/hsiaoyi0504/crux-toolkit/pkg/reader/ms2"
)

func TestWriteProcessed(t *testing.T) {
	rt := 12.5
	spec := &core.Spectrum{FirstScan: 42, LastScan: 42, PrecursorMZ: 500.25, RetentionTime: &rt}
	processed := make([]float64, 200)
	processed[100] = 12.5
	processed[150] = -3

	var buf bytes.Buffer
	w := NewWriter(&buf)
	assert.NoError(t, w.WriteHeader(ProcessedComment))
	assert.NoError(t, w.WriteProcessed(spec, []int{2, 3}, processed))
	assert.NoError(t, w.Flush())

	want := strings.Join([]string{
		"H\tComment\tSpectra processed as for Xcorr",
		"S\t000042\t000042\t500.2500",
		"I\tRTime\t12.5000",
		"Z\t2\t999.4927",
		"Z\t3\t1498.7354",
		"100.15 12.5000",
		"150.18 -3.0000",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteSpectrumReadsBack(t *testing.T) {
	spec := &core.Spectrum{
		FirstScan:   5,
		LastScan:    6,
		PrecursorMZ: 612.8,
		Charges:     []int{2},
		Peaks:       []core.Peak{{MZ: 110.5, Intensity: 3}, {MZ: 220.25, Intensity: 7.5}},
	}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	assert.NoError(t, w.WriteHeader("round trip"))
	assert.NoError(t, w.WriteSpectrum(spec))
	assert.NoError(t, w.Flush())

	r := ms2reader.NewReader(&buf, "rt.ms2")
	if !assert.True(t, r.Next(), "%v", r.Err()) {
		return
	}
	got := r.Spectrum()
	assert.Equal(t, 5, got.FirstScan)
	assert.Equal(t, 6, got.LastScan)
	assert.Equal(t, []int{2}, got.Charges)
	assert.Equal(t, spec.Peaks, got.Peaks)
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
}
