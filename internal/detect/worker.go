// Package detect runs the flicker capture-and-analyze loop: read one
// chunk from the device channel, advance the capture window, and once
// a window completes, remove its DC offset, run the spectral stage,
// correct for bus drift, and publish the result.
package detect

import (
	"sync/atomic"

	"flicker/internal/bus"
	"flicker/internal/capture"
	applog "flicker/internal/log"
	"flicker/internal/spectral"
)

// Result is one completed window's flicker-frequency measurement,
// before conversion to the public API's wire type.
type Result struct {
	FirstPeakFreqHz   float64
	SecondPeakFreqHz  float64
	FirstPeakAmpl     float64
	SecondPeakAmpl    float64
	AvgTopFiveAmpl    float64
	AvgRaw            int16
	MaxRaw            int16
	MinRaw            int16
	SamplingFrequency uint32
}

// Worker owns the detect-and-analyze loop. It is not safe to call Run
// more than once concurrently on the same Worker.
type Worker struct {
	device  bus.Channel
	capture *capture.State
	meter   *bus.FrequencyMeter
	publish func(Result)

	speedHz               uint32 // bus clock negotiated at session open
	defaultBusFrequencyHz uint32 // reference clock drift is corrected against

	newFrequency atomic.Uint32 // 0 = no pending change

	running atomic.Bool
	doneCh  chan struct{}

	buffer []int16
	stage  *spectral.Stage
}

// NewWorker builds a Worker over an already-opened device and
// capture.State, both already Reconfigure'd to the starting sampling
// frequency. publish is called once per completed window; it must not
// block for long, since it runs on the capture loop's goroutine.
func NewWorker(device bus.Channel, state *capture.State, meter *bus.FrequencyMeter, speedHz, defaultBusFrequencyHz uint32, publish func(Result)) *Worker {
	w := &Worker{
		device:                device,
		capture:               state,
		meter:                 meter,
		publish:               publish,
		speedHz:               speedHz,
		defaultBusFrequencyHz: defaultBusFrequencyHz,
		doneCh:                make(chan struct{}),
	}
	w.running.Store(true)
	w.allocate(state.SamplingFrequency())
	return w
}

func (w *Worker) allocate(samplingFrequency uint32) {
	w.buffer = make([]int16, samplingFrequency)
	w.stage = spectral.NewStage(int(samplingFrequency))
}

// Run executes the capture loop until Stop is called. It returns when
// the loop observes the stop flag or the device reports an error.
func (w *Worker) Run() {
	defer close(w.doneCh)

	for w.running.Load() {
		done := w.capture.ChunksDone()
		offset := int(done * w.capture.SamplesPerChunk())

		if err := w.device.ReadChunk(w.buffer, offset); err != nil {
			applog.Errorf("detect: chunk read failed: %v", err)
			return
		}

		// Bracket the window's transfers for the bus-clock
		// measurement: timestamp the end of the first chunk and the
		// end of the last, covering done (= chunks-1) full transfers.
		if done == 0 {
			w.meter.OnChunkStart()
		}

		switch w.capture.TryAdvanceChunk() {
		case capture.WindowReady:
			w.meter.OnChunkBeforeLast(done)
			w.processWindow()
		case capture.Overrun:
			applog.Errorf("detect: chunk accepted after window was already complete")
			return
		case capture.InProgress:
		}
	}
}

// Stop asks the loop to exit after its current chunk read and blocks
// until it has.
func (w *Worker) Stop() {
	w.running.Store(false)
	<-w.doneCh
}

// SetNewSamplingFrequency schedules a sampling-frequency change to
// take effect after the window currently being captured completes.
func (w *Worker) SetNewSamplingFrequency(hz uint32) {
	w.newFrequency.Store(hz)
}

func (w *Worker) processWindow() {
	idx := w.capture.Index()
	realN := w.capture.SamplesNumber(idx)

	min, max, avg := statsAndRemoveDC(w.buffer[:realN])
	full := w.capture.SampleStatsAndAdvanceIndex(min, max, avg)

	samplingFrequency := w.capture.SamplingFrequency()
	peaks := w.stage.Analyze(w.buffer[:full], samplingFrequency)

	ratio := float64(w.meter.EffectiveHz()) / float64(w.defaultBusFrequencyHz)

	w.publish(Result{
		FirstPeakFreqHz:   peaks.FirstFreqHz * ratio,
		SecondPeakFreqHz:  peaks.SecondFreqHz * ratio,
		FirstPeakAmpl:     peaks.FirstAmpl,
		SecondPeakAmpl:    peaks.SecondAmpl,
		AvgTopFiveAmpl:    peaks.AvgTopFiveAmp,
		AvgRaw:            avg,
		MaxRaw:            max,
		MinRaw:            min,
		SamplingFrequency: samplingFrequency,
	})

	if nf := w.newFrequency.Swap(0); nf != 0 && nf != samplingFrequency {
		if err := w.capture.Reconfigure(nf); err != nil {
			applog.Errorf("detect: reconfigure to %d Hz failed: %v", nf, err)
		} else {
			w.allocate(nf)
			if err := w.device.SetParams(w.speedHz, uint16(w.capture.SamplesPerChunk()), uint16(w.capture.PDMSampleWidth())); err != nil {
				applog.Errorf("detect: device SetParams after reconfigure failed: %v", err)
			}
		}
	}

	w.capture.RestartTransfers()
}

// statsAndRemoveDC computes the min, max, and mean of samples and
// subtracts the mean from each sample in place.
func statsAndRemoveDC(samples []int16) (min, max, avg int16) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	var sum int64
	min, max = samples[0], samples[0]
	for _, s := range samples {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
		sum += int64(s)
	}
	avg = int16(sum / int64(len(samples)))
	for i, s := range samples {
		samples[i] = s - avg
	}
	return min, max, avg
}
