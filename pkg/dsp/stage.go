// Package dsp turns raw ADC codes into calibrated voltages and,
// optionally, per-channel power spectra. A Stage is bound to one
// acquisition session's AdcConfig; Process is called once per batch
// and never panics: malformed input comes back as a typed error so the
// acquisition loop can keep running.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/neuracq/neuracq/pkg/eeg/driver"
)

// SpectralConfig enables frequency-domain analysis. A nil
// SpectralConfig on NewStage disables it entirely.
type SpectralConfig struct {
	Window WindowType
}

// Spectra holds per-channel power spectra and their frequency bin
// centers. Both slices always have the same shape: keeping them in one
// struct is what guarantees they are present or absent together on a
// record.
type Spectra struct {
	Power [][]float32
	Bins  [][]float32
}

// Result is the outcome of processing one batch. Voltages are
// populated whenever the batch shape was valid; Spectra is nil when
// analysis is disabled or failed. Err carries a ShapeMismatch or
// SpectralAnalysisFailed error; the latter leaves Voltages intact.
type Result struct {
	Voltages [][]float32
	Spectra  *Spectra
	Err      error
}

type Stage struct {
	cfg      driver.AdcConfig
	spectral *SpectralConfig

	// Linear calibration: v = code*scale + offset, mapping code 0 to
	// -Vref/(2G) and code 2^(R-1)-1 to just under +Vref/(2G).
	scale  float64
	offset float64

	// FFT plan and window taps, rebuilt only when the batch length
	// changes. Batches within a session are normally a constant size.
	fft   *fourier.FFT
	taps  []float64
	planN int
}

func NewStage(cfg driver.AdcConfig, spectral *SpectralConfig) *Stage {
	return &Stage{
		cfg:      cfg,
		spectral: spectral,
		scale:    cfg.Vref / (cfg.Gain * math.Exp2(float64(cfg.Resolution-1))),
		offset:   -cfg.Vref / (2 * cfg.Gain),
	}
}

// SpectralEnabled reports whether Process will attempt spectral
// analysis.
func (s *Stage) SpectralEnabled() bool { return s.spectral != nil }

// Voltage converts a single raw code. Identical codes always yield
// identical voltages.
func (s *Stage) Voltage(code int32) float32 {
	return float32(float64(code)*s.scale + s.offset)
}

// Process runs the full stage on one batch.
func (s *Stage) Process(batch driver.RawBatch) Result {
	if err := s.checkShape(batch); err != nil {
		return Result{Err: err}
	}

	voltages := make([][]float32, len(batch))
	for ch, row := range batch {
		out := make([]float32, len(row))
		for i, code := range row {
			out[i] = s.Voltage(code)
		}
		voltages[ch] = out
	}

	if s.spectral == nil {
		return Result{Voltages: voltages}
	}

	spectra, err := s.analyze(voltages)
	if err != nil {
		// Voltages survive a spectral failure.
		return Result{Voltages: voltages, Err: err}
	}
	return Result{Voltages: voltages, Spectra: spectra}
}

func (s *Stage) checkShape(batch driver.RawBatch) error {
	if len(batch) == 0 {
		return &Error{Kind: ShapeMismatch, Msg: "empty batch"}
	}
	if len(batch) != s.cfg.Channels {
		return &Error{Kind: ShapeMismatch,
			Msg: fmt.Sprintf("got %d channels, configured %d", len(batch), s.cfg.Channels)}
	}
	n := len(batch[0])
	for ch, row := range batch {
		if len(row) != n {
			return &Error{Kind: ShapeMismatch,
				Msg: fmt.Sprintf("channel %d has %d samples, channel 0 has %d", ch, len(row), n)}
		}
	}
	return nil
}

// analyze windows each channel and computes the positive-frequency
// power spectrum |X_k|^2/N with bin centers k*Fs/N, k = 1..ceil(N/2)-1.
// DC and the (negative by convention) Nyquist bin are excluded.
func (s *Stage) analyze(voltages [][]float32) (*Spectra, error) {
	n := len(voltages[0])
	if n == 0 {
		return nil, &Error{Kind: SpectralAnalysisFailed, Msg: "zero-length channel"}
	}
	nbins := (n+1)/2 - 1
	if nbins < 1 {
		return nil, &Error{Kind: SpectralAnalysisFailed,
			Msg: fmt.Sprintf("%d samples yield no positive frequency bins", n)}
	}

	if s.planN != n {
		s.fft = fourier.NewFFT(n)
		s.taps = s.spectral.Window.Taps(n)
		s.planN = n
	}

	sp := &Spectra{
		Power: make([][]float32, len(voltages)),
		Bins:  make([][]float32, len(voltages)),
	}

	buf := make([]float64, n)
	for ch, row := range voltages {
		for i, v := range row {
			buf[i] = float64(v) * s.taps[i]
		}
		coeffs := s.fft.Coefficients(nil, buf)

		power := make([]float32, nbins)
		bins := make([]float32, nbins)
		for k := 1; k <= nbins; k++ {
			mag := cmplx.Abs(coeffs[k])
			power[k-1] = float32(mag * mag / float64(n))
			bins[k-1] = float32(float64(k) * float64(s.cfg.SampleRate) / float64(n))
		}
		sp.Power[ch] = power
		sp.Bins[ch] = bins
	}
	return sp, nil
}
