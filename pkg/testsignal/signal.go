// Package testsignal generates synthetic PDM sample windows for testing
// the spectral stage and detect worker without real hardware.
package testsignal

import "math"

// GenerateTone returns a window of n int16 samples of a single-frequency
// sine wave sampled at sampleRate, scaled to most of the int16 range.
func GenerateTone(n int, sampleRate, frequency float64) []int16 {
	buf := make([]int16, n)
	for i := range buf {
		t := float64(i) / sampleRate
		buf[i] = int16(math.Sin(2*math.Pi*frequency*t) * math.MaxInt16 * 0.9)
	}
	return buf
}

// GenerateHarmonicTone returns a window combining a fundamental and two
// harmonics, useful for exercising multi-peak selection.
func GenerateHarmonicTone(n int, sampleRate, fundamental float64) []int16 {
	buf := make([]int16, n)
	for i := range buf {
		t := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*fundamental*t)*0.5 +
			math.Sin(2*math.Pi*fundamental*2*t)*0.3 +
			math.Sin(2*math.Pi*fundamental*3*t)*0.2
		buf[i] = int16(signal * math.MaxInt16 * 0.9)
	}
	return buf
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin:endBin], clamped to the slice bounds.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}
	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
