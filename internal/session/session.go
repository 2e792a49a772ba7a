// Package session implements the driver's lifecycle state machine: one
// Session per open device, a dedicated command worker that dispatches
// asynchronous Start/Stop/Close requests, and the detect worker it
// supervises while the session is Started. Poll reads the Ring a
// separate goroutine publishes into; it never touches capture state
// directly.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"flicker/internal/bus"
	"flicker/internal/capture"
	"flicker/internal/config"
	"flicker/internal/detect"
	applog "flicker/internal/log"
)

// LifecycleState is the Stopped/Started half of the session's state
// machine; Closed is represented by Session.closed instead, since a
// closed Session is no longer a valid receiver for any method but
// Close itself (which is idempotent-safe to call once).
type LifecycleState int

const (
	Stopped LifecycleState = iota
	Started
)

func (s LifecycleState) String() string {
	if s == Started {
		return "Started"
	}
	return "Stopped"
}

// PendingCommand names the single in-flight asynchronous command a
// Session can hold at once.
type PendingCommand int

const (
	PendingNone PendingCommand = iota
	PendingStart
	PendingStop
	PendingClose
)

// Session is the stateful object Open creates and Close destroys. All
// exported methods are safe for concurrent use; Start/Stop only post a
// command and return once it has been accepted, not once the command
// worker has executed it (the state machine's transitions lag the calls
// by at most one command-worker wakeup). Close blocks until the command
// worker has executed it.
type Session struct {
	apiMu sync.Mutex

	device  bus.Channel
	capture *capture.State
	ring    *Ring
	meter   *bus.FrequencyMeter
	cfg     *config.Config

	samplingFrequency uint32
	speedHz           uint32
	state             LifecycleState
	pending           PendingCommand
	closed            bool

	worker     *detect.Worker
	workerDone chan struct{}

	commandSignal chan struct{}
	commandWG     sync.WaitGroup
}

// Open opens device, reads its transfer geometry, builds the derived
// capture state, and spawns the command worker, blocking until it is
// ready to accept commands. The returned Session starts Stopped at
// cfg.Sampling.Default.
func Open(device bus.Channel, cfg *config.Config) (*Session, error) {
	info, err := device.Open()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrDeviceAbsent, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceIO, err)
	}
	if info.ChunkSize == 0 || info.MaxFrequencyHz == 0 {
		device.Close()
		return nil, fmt.Errorf("session: device reported zero chunk size or max bus frequency")
	}

	captureState, err := capture.NewState(info.ChunkSize)
	if err != nil {
		device.Close()
		return nil, err
	}

	// Run the bus at the reference clock when the device allows it;
	// otherwise at the fastest clock it reports. Absent local
	// measurement, that chosen speed is what drift correction assumes.
	speedHz := uint32(config.DefaultBusFrequencyHz)
	if info.MaxFrequencyHz < speedHz {
		speedHz = info.MaxFrequencyHz
	}

	s := &Session{
		device:            device,
		capture:           captureState,
		ring:              NewRing(cfg.Ring.Capacity),
		meter:             bus.NewFrequencyMeter(cfg.Device.MeasureBusFrequency, speedHz, info.ChunkSize),
		cfg:               cfg,
		samplingFrequency: cfg.Sampling.Default,
		speedHz:           speedHz,
		commandSignal:     make(chan struct{}, 1),
	}

	ready := make(chan struct{})
	s.commandWG.Add(1)
	go s.runCommandWorker(ready)
	<-ready

	return s, nil
}

// Configure snaps freq upward to the least configured sampling
// frequency >= freq and stores it. While Started the change is
// latched into the running detect worker, which applies it at the
// next window boundary, not synchronously.
func (s *Session) Configure(freq uint32) error {
	s.apiMu.Lock()
	defer s.apiMu.Unlock()

	if s.closed {
		return ErrNotOpen
	}
	snapped, err := snapFrequency(s.cfg.Sampling.Frequencies, freq)
	if err != nil {
		return err
	}
	s.samplingFrequency = snapped
	if s.state == Started && s.worker != nil {
		s.worker.SetNewSamplingFrequency(snapped)
	}
	return nil
}

// snapFrequency returns the least entry of table (sorted strictly
// descending, as config.Validate enforces) that is >= req, or
// ErrConfigOutOfRange if req falls outside [table's min, table's max].
func snapFrequency(table []uint32, req uint32) (uint32, error) {
	if len(table) == 0 {
		return 0, fmt.Errorf("session: empty sampling frequency table")
	}
	min, max := table[len(table)-1], table[0]
	if req < min || req > max {
		return 0, ErrConfigOutOfRange
	}
	for i := len(table) - 1; i >= 0; i-- {
		if table[i] >= req {
			return table[i], nil
		}
	}
	return table[0], nil
}

// Start posts an asynchronous Start command, rejecting it if the
// session is closed, already Started, or another command is pending.
func (s *Session) Start() error {
	s.apiMu.Lock()
	defer s.apiMu.Unlock()

	if s.closed {
		return ErrNotOpen
	}
	if s.pending != PendingNone {
		return ErrCommandBusy
	}
	if s.state == Started {
		return ErrAlreadyStarted
	}
	s.pending = PendingStart
	s.signalCommand()
	return nil
}

// Stop posts an asynchronous Stop command, rejecting it if the
// session is closed, already Stopped, or another command is pending.
func (s *Session) Stop() error {
	s.apiMu.Lock()
	defer s.apiMu.Unlock()

	if s.closed {
		return ErrNotOpen
	}
	if s.pending != PendingNone {
		return ErrCommandBusy
	}
	if s.state == Stopped {
		return ErrAlreadyStopped
	}
	s.pending = PendingStop
	s.signalCommand()
	return nil
}

// Close spin-waits until the session reaches Stopped with no other
// command pending, then posts Close and blocks until the command
// worker has executed it and exited. It is the only method safe to
// call after the session has already been asked to Close; repeated
// calls return ErrNotOpen once the first has completed.
func (s *Session) Close() error {
	s.apiMu.Lock()
	if s.closed {
		s.apiMu.Unlock()
		return ErrNotOpen
	}
	s.apiMu.Unlock()

	spin := s.cfg.Timing.CommandSpinSleep
	if spin <= 0 {
		spin = 100 * time.Microsecond
	}
	for {
		s.apiMu.Lock()
		if s.state == Stopped && s.pending == PendingNone {
			s.pending = PendingClose
			s.signalCommand()
			s.apiMu.Unlock()
			break
		}
		s.apiMu.Unlock()
		time.Sleep(spin)
	}

	s.commandWG.Wait()
	return nil
}

// Poll waits up to the configured poll timeout for a new result, then
// copies up to n of the most recent results (newest first) into out
// and returns how many were copied. It blocks even before Start, so
// an early caller does not spin.
func (s *Session) Poll(n int, out []detect.Result) (int, error) {
	s.apiMu.Lock()
	closed := s.closed
	s.apiMu.Unlock()
	if closed {
		return 0, ErrNotOpen
	}

	s.ring.Wait(s.cfg.Timing.PollTimeout)
	return s.ring.Drain(n, out), nil
}

// signalCommand wakes the command worker without blocking; a pending
// wakeup already queued is sufficient, so a full channel is a no-op.
func (s *Session) signalCommand() {
	select {
	case s.commandSignal <- struct{}{}:
	default:
	}
}

// runCommandWorker is the dedicated goroutine spawned by Open. It
// wakes on every signalCommand call and, as a liveness fallback
// against a lost wakeup between consecutive API calls, on the configured
// command timeout (one second by default) regardless; either way it re-reads pending
// under apiMu, so a spurious wakeup with no command set is a no-op.
func (s *Session) runCommandWorker(ready chan struct{}) {
	defer s.commandWG.Done()
	close(ready)

	for {
		select {
		case <-s.commandSignal:
		case <-time.After(s.cfg.Timing.CommandTimeout):
		}

		s.apiMu.Lock()
		cmd := s.pending
		s.apiMu.Unlock()

		switch cmd {
		case PendingStart:
			s.doStart()
		case PendingStop:
			s.doStop()
		case PendingClose:
			s.doClose()
			return
		case PendingNone:
		}
	}
}

func (s *Session) doStart() {
	s.apiMu.Lock()
	if s.state == Started {
		s.pending = PendingNone
		s.apiMu.Unlock()
		return
	}
	freq := s.samplingFrequency
	s.apiMu.Unlock()

	if err := s.capture.Reconfigure(freq); err != nil {
		applog.Errorf("session: reconfigure to %d Hz failed: %v", freq, err)
		s.apiMu.Lock()
		s.pending = PendingNone
		s.apiMu.Unlock()
		return
	}
	if err := s.device.SetParams(s.speedHz, uint16(s.capture.SamplesPerChunk()), uint16(s.capture.PDMSampleWidth())); err != nil {
		applog.Errorf("session: SetParams at start failed: %v", err)
		s.apiMu.Lock()
		s.pending = PendingNone
		s.apiMu.Unlock()
		return
	}

	w := detect.NewWorker(s.device, s.capture, s.meter, s.speedHz, config.DefaultBusFrequencyHz, s.publish)
	done := make(chan struct{})

	s.apiMu.Lock()
	s.worker = w
	s.workerDone = done
	s.state = Started
	s.pending = PendingNone
	s.apiMu.Unlock()

	go func() {
		w.Run()
		close(done)
	}()
}

func (s *Session) doStop() {
	s.apiMu.Lock()
	if s.state != Started {
		s.pending = PendingNone
		s.apiMu.Unlock()
		return
	}
	w := s.worker
	done := s.workerDone
	s.apiMu.Unlock()

	w.Stop()
	<-done

	s.ring.Reset()

	s.apiMu.Lock()
	s.worker = nil
	s.workerDone = nil
	s.state = Stopped
	s.pending = PendingNone
	s.apiMu.Unlock()
}

func (s *Session) doClose() {
	s.apiMu.Lock()
	w := s.worker
	done := s.workerDone
	s.apiMu.Unlock()

	if w != nil {
		w.Stop()
		<-done
	}

	if err := s.device.Close(); err != nil {
		applog.Errorf("session: device close failed: %v", err)
	}

	s.apiMu.Lock()
	s.worker = nil
	s.workerDone = nil
	s.state = Stopped
	s.closed = true
	s.pending = PendingNone
	s.apiMu.Unlock()
}

func (s *Session) publish(res detect.Result) {
	s.ring.Publish(res)
}
