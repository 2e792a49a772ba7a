package detect

import (
	"sync"
	"testing"
	"time"

	"flicker/internal/bus"
	"flicker/internal/capture"
	"flicker/pkg/testsignal"
)

const (
	testChunkSize    = 32768 // 524288 / 32768 = 16 chunks/sec
	testSamplingFreq = 4096
)

type testRig struct {
	worker *Worker
	device *bus.FakeDevice
	state  *capture.State

	mu      sync.Mutex
	results []Result
}

func (r *testRig) recordResult(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *testRig) resultCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	tone := testsignal.GenerateTone(testSamplingFreq, testSamplingFreq, 60)
	dev := bus.NewFakeDevice(bus.Info{ChunkSize: testChunkSize, MaxFrequencyHz: 4 * 1024 * 1024}, tone)

	if _, err := dev.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	state, err := capture.NewState(testChunkSize)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if err := state.Reconfigure(testSamplingFreq); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if err := dev.SetParams(4*1024*1024, uint16(state.SamplesPerChunk()), uint16(state.PDMSampleWidth())); err != nil {
		t.Fatalf("SetParams: %v", err)
	}

	meter := bus.NewFrequencyMeter(false, 4*1024*1024, testChunkSize)

	rig := &testRig{device: dev, state: state}
	rig.worker = NewWorker(dev, state, meter, 4*1024*1024, 4*1024*1024, rig.recordResult)
	return rig
}

func (r *testRig) runUntil(t *testing.T, timeout time.Duration, done func() bool) {
	t.Helper()
	finished := make(chan struct{})
	go func() {
		r.worker.Run()
		close(finished)
	}()

	deadline := time.After(timeout)
	for !done() {
		select {
		case <-deadline:
			r.worker.Stop()
			<-finished
			t.Fatalf("condition not met before timeout")
		case <-time.After(time.Millisecond):
		}
	}

	r.worker.Stop()
	<-finished
}

func TestWorkerProducesThreeWindowsPerCycle(t *testing.T) {
	rig := newTestRig(t)

	rig.runUntil(t, 2*time.Second, func() bool { return rig.resultCount() >= 3 })

	rig.mu.Lock()
	defer rig.mu.Unlock()
	for i, res := range rig.results[:3] {
		if res.SamplingFrequency != testSamplingFreq {
			t.Errorf("result %d SamplingFrequency = %d, want %d", i, res.SamplingFrequency, testSamplingFreq)
		}
	}
}

func TestProgressiveWindowsConvergeOnTone(t *testing.T) {
	tone := testsignal.GenerateTone(testSamplingFreq, testSamplingFreq, 100)
	dev := bus.NewFakeDevice(bus.Info{ChunkSize: testChunkSize, MaxFrequencyHz: 4 * 1024 * 1024}, tone)
	if _, err := dev.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	state, err := capture.NewState(testChunkSize)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if err := state.Reconfigure(testSamplingFreq); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if err := dev.SetParams(4*1024*1024, uint16(state.SamplesPerChunk()), uint16(state.PDMSampleWidth())); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	meter := bus.NewFrequencyMeter(false, 4*1024*1024, testChunkSize)

	rig := &testRig{device: dev, state: state}
	rig.worker = NewWorker(dev, state, meter, 4*1024*1024, 4*1024*1024, rig.recordResult)

	rig.runUntil(t, 2*time.Second, func() bool { return rig.resultCount() >= 3 })

	// Quarter, half, and full windows tighten the tolerance as real
	// content replaces zero padding.
	rig.mu.Lock()
	defer rig.mu.Unlock()
	for i, tol := range []float64{4, 2, 1} {
		got := rig.results[i].FirstPeakFreqHz
		if got < 100-tol || got > 100+tol {
			t.Errorf("window %d peak = %v Hz, want 100 +/- %v", i, got, tol)
		}
	}
}

func TestWorkerReconfiguresOnNewFrequency(t *testing.T) {
	rig := newTestRig(t)
	rig.worker.SetNewSamplingFrequency(2048)

	rig.runUntil(t, 2*time.Second, func() bool { return rig.state.SamplingFrequency() == 2048 })

	if got := rig.state.SamplingFrequency(); got != 2048 {
		t.Errorf("SamplingFrequency() = %d, want 2048", got)
	}
}

func TestStatsAndRemoveDC(t *testing.T) {
	samples := []int16{10, 20, 30, -10}
	min, max, avg := statsAndRemoveDC(samples)
	if min != -10 || max != 30 {
		t.Errorf("min=%d max=%d, want min=-10 max=30", min, max)
	}
	if avg != 12 {
		t.Errorf("avg=%d, want 12", avg)
	}
	want := []int16{-2, 8, 18, -22}
	for i, v := range samples {
		if v != want[i] {
			t.Errorf("samples[%d] = %d, want %d", i, v, want[i])
		}
	}
}
