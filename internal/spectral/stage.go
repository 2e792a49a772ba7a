// Package spectral runs the flicker FFT and picks spectral peaks out of
// a DC-removed, zero-padded sample window. It treats the external FFT
// as a pure function: Stage holds no capture state of its own.
package spectral

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"flicker/pkg/bitint"
)

// peakCount is the number of distinct spectral peaks extracted per
// window (the original clear-channel flicker algorithm keeps the top
// five by magnitude, reporting the first two and averaging all five).
const peakCount = 5

// Peaks holds the spectral result of one window, before bus-drift
// correction is applied by the caller.
type Peaks struct {
	FirstBin      int
	SecondBin     int
	FirstFreqHz   float64
	SecondFreqHz  float64
	FirstAmpl     float64
	SecondAmpl    float64
	AvgTopFiveAmp float64
}

// Stage wraps a gonum real FFT sized to a fixed window length and
// reuses its buffers across calls to stay allocation-free on the hot
// path. A Stage must be recreated whenever the window length changes
// (i.e. whenever the sampling frequency is reconfigured).
type Stage struct {
	windowLen int
	fft       *fourier.FFT
	real      []float64
	coeffs    []complex128
	magnitude []float64
}

// NewStage builds a Stage for a window of windowLen real samples.
// windowLen must be a power of two; the sampling-frequency table this
// driver honors guarantees that.
func NewStage(windowLen int) *Stage {
	if !bitint.IsPowerOfTwo(windowLen) {
		panic("spectral: window length must be a power of two")
	}
	half := windowLen/2 + 1
	return &Stage{
		windowLen: windowLen,
		fft:       fourier.NewFFT(windowLen),
		real:      make([]float64, windowLen),
		coeffs:    make([]complex128, half),
		magnitude: make([]float64, half),
	}
}

// Analyze runs the FFT over samples (already DC-removed by the caller
// over its real, non-padded prefix) and returns the top spectral
// peaks. samples may be shorter than the stage's window length; the
// remainder is treated as zero, giving the fixed 1 Hz bin width the
// progressive window scheme relies on. samplingFrequency is used only
// to convert bin indices to Hz; it is not the bus-measured frequency,
// which the caller applies afterward as a drift correction.
func (s *Stage) Analyze(samples []int16, samplingFrequency uint32) Peaks {
	n := len(samples)
	if n > s.windowLen {
		n = s.windowLen
	}
	for i := 0; i < n; i++ {
		s.real[i] = float64(samples[i])
	}
	for i := n; i < s.windowLen; i++ {
		s.real[i] = 0
	}

	coeffs := s.fft.Coefficients(s.coeffs, s.real)
	half := s.windowLen / 2
	for i := 0; i <= half; i++ {
		s.magnitude[i] = cmplx.Abs(coeffs[i])
	}

	bins, values := selectTopPeaks(s.magnitude, half)

	norm := float64(s.windowLen)
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return Peaks{
		FirstBin:      bins[0],
		SecondBin:     bins[1],
		FirstFreqHz:   float64((bins[0] * int(samplingFrequency)) / s.windowLen),
		SecondFreqHz:  float64((bins[1] * int(samplingFrequency)) / s.windowLen),
		FirstAmpl:     values[0] / norm,
		SecondAmpl:    values[1] / norm,
		AvgTopFiveAmp: sum / peakCount / norm,
	}
}

// selectTopPeaks finds the peakCount largest magnitudes among bins
// [1, half), one sequential pass per peak, excluding any magnitude
// exactly equal to one already selected. This mirrors the original
// detector's tie-break behavior: two equal-amplitude bins collapse to
// a single selected value rather than being picked twice, which can
// make the ranked peaks skip over a bin whose amplitude happens to tie
// an earlier one. Kept deliberately rather than switched to
// index-based exclusion, to preserve existing field calibration.
func selectTopPeaks(magnitude []float64, half int) (bins [peakCount]int, values [peakCount]float64) {
	for k := range values {
		values[k] = -1
	}
	for k := 0; k < peakCount; k++ {
		for i := 1; i < half; i++ {
			v := magnitude[i]
			if v <= values[k] {
				continue
			}
			excluded := false
			for j := 0; j < k; j++ {
				if v == values[j] {
					excluded = true
					break
				}
			}
			if excluded {
				continue
			}
			bins[k] = i
			values[k] = v
		}
	}
	return
}
