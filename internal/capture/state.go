// Package capture tracks the progressive capture window: how many
// chunks make up a quarter/half/full second of data at the current
// sampling frequency, and where the current window is in that cycle.
// It holds no device handle and performs no I/O; the detect worker
// drives it alongside a bus.Channel.
package capture

import (
	"fmt"
	"sync"
)

// WindowIndex names one of the three progressive accuracy levels a
// capture cycle passes through before restarting.
type WindowIndex int

const (
	QuarterWindow WindowIndex = iota
	HalfWindow
	FullWindow
)

const windowLevels = 3

// AdvanceResult reports the outcome of TryAdvanceChunk.
type AdvanceResult int

const (
	// InProgress means the chunk was accepted; more are needed.
	InProgress AdvanceResult = iota
	// WindowReady means this was the last chunk the current window
	// needed.
	WindowReady
	// Overrun means TryAdvanceChunk was called after the window was
	// already complete, which should not happen by construction.
	Overrun
)

// State holds the derived sizing for the current sampling frequency
// and the in-progress chunk count, guarded by a single mutex.
type State struct {
	mu sync.Mutex

	chunkSize       uint32 // device transfer granularity, in bytes; fixed for the session
	chunksPerSecond uint32 // one_second_buffer_size / chunk_size; fixed for the session

	samplingFrequency uint32
	pdmSampleWidth    uint32
	samplesPerChunk   uint32

	samplesNumber [windowLevels]uint32
	maxChunks     [windowLevels]uint32

	index      WindowIndex
	chunksDone uint32

	lastMin, lastMax, lastAvg int16
}

// OneSecondBufferSize is the number of PDM sample bytes captured per
// second of flicker data at the device's default bus frequency.
const OneSecondBufferSize = 4 * 1024 * 1024 / 8

// NewState builds a State for a device whose chunk transfer size is
// chunkSizeBytes. OneSecondBufferSize must be evenly divisible by it.
func NewState(chunkSizeBytes uint32) (*State, error) {
	if chunkSizeBytes == 0 || OneSecondBufferSize%chunkSizeBytes != 0 {
		return nil, fmt.Errorf("capture: chunk size %d does not evenly divide the one-second buffer", chunkSizeBytes)
	}
	return &State{
		chunkSize:       chunkSizeBytes,
		chunksPerSecond: OneSecondBufferSize / chunkSizeBytes,
	}, nil
}

// Reconfigure recomputes window sizing for a new sampling frequency
// and resets the in-progress window to its first (quarter) level.
func (s *State) Reconfigure(samplingFrequency uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if samplingFrequency == 0 || samplingFrequency%s.chunksPerSecond != 0 {
		return fmt.Errorf("capture: sampling frequency %d is not a multiple of chunks-per-second %d", samplingFrequency, s.chunksPerSecond)
	}
	width := OneSecondBufferSize / samplingFrequency
	if width*samplingFrequency != OneSecondBufferSize {
		return fmt.Errorf("capture: sampling frequency %d does not evenly divide the one-second buffer", samplingFrequency)
	}

	s.samplingFrequency = samplingFrequency
	s.pdmSampleWidth = width
	s.samplesPerChunk = samplingFrequency / s.chunksPerSecond

	full := samplingFrequency
	s.samplesNumber[FullWindow] = full
	s.samplesNumber[HalfWindow] = full / 2
	s.samplesNumber[QuarterWindow] = full / 4

	s.maxChunks[FullWindow] = s.chunksPerSecond
	s.maxChunks[HalfWindow] = s.chunksPerSecond / 2
	s.maxChunks[QuarterWindow] = s.chunksPerSecond / 4

	s.index = QuarterWindow
	s.chunksDone = 0
	return nil
}

// TryAdvanceChunk records that one chunk was just read and reports
// whether the current window is now complete.
func (s *State) TryAdvanceChunk() AdvanceResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	max := s.maxChunks[s.index]
	switch {
	case s.chunksDone == max:
		return Overrun
	case s.chunksDone == max-1:
		s.chunksDone++
		return WindowReady
	default:
		s.chunksDone++
		return InProgress
	}
}

// SampleStatsAndAdvanceIndex records the raw min/max/avg of the window
// that just completed, advances the progressive window index (it
// saturates at FullWindow), and returns the constant full-window
// length the FFT stage always runs on.
func (s *State) SampleStatsAndAdvanceIndex(min, max, avg int16) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMin, s.lastMax, s.lastAvg = min, max, avg
	if s.index < FullWindow {
		s.index++
	}
	return s.samplesNumber[FullWindow]
}

// RestartTransfers resets the chunk counter so the next window starts
// filling from the beginning of the capture buffer.
func (s *State) RestartTransfers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunksDone = 0
}

// Index returns the progressive window level the in-progress capture
// is currently filling.
func (s *State) Index() WindowIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// SamplesNumber returns the real (non-padded) sample count for level i.
func (s *State) SamplesNumber(i WindowIndex) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samplesNumber[i]
}

// SamplesPerChunk returns the sample count written by one chunk
// transfer at the current sampling frequency.
func (s *State) SamplesPerChunk() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samplesPerChunk
}

// ChunksDone returns the number of chunks accepted into the
// in-progress window.
func (s *State) ChunksDone() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunksDone
}

// SamplingFrequency returns the sampling frequency the state is
// currently configured for.
func (s *State) SamplingFrequency() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samplingFrequency
}

// PDMSampleWidth returns the oversampling ratio (one-second buffer
// size divided by sampling frequency) the device was configured with.
func (s *State) PDMSampleWidth() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pdmSampleWidth
}
