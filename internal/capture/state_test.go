package capture

import "testing"

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := NewState(32768) // one-second buffer (524288) / 32768 = 16 chunks/sec
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if err := s.Reconfigure(2048); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	return s
}

func TestNewStateRejectsBadChunkSize(t *testing.T) {
	if _, err := NewState(1000); err == nil {
		t.Fatalf("NewState(1000) = nil error, want error (1000 does not divide 524288)")
	}
}

func TestReconfigureDerivesWindowSizes(t *testing.T) {
	s := newTestState(t)

	if got := s.SamplesNumber(FullWindow); got != 2048 {
		t.Errorf("SamplesNumber(Full) = %d, want 2048", got)
	}
	if got := s.SamplesNumber(HalfWindow); got != 1024 {
		t.Errorf("SamplesNumber(Half) = %d, want 1024", got)
	}
	if got := s.SamplesNumber(QuarterWindow); got != 512 {
		t.Errorf("SamplesNumber(Quarter) = %d, want 512", got)
	}
	if s.Index() != QuarterWindow {
		t.Errorf("Index() = %v, want QuarterWindow after reconfigure", s.Index())
	}
}

func TestTryAdvanceChunkSequence(t *testing.T) {
	s := newTestState(t)

	maxChunks := s.maxChunks[QuarterWindow]
	for i := uint32(0); i < maxChunks-1; i++ {
		if got := s.TryAdvanceChunk(); got != InProgress {
			t.Fatalf("TryAdvanceChunk() iteration %d = %v, want InProgress", i, got)
		}
	}
	if got := s.TryAdvanceChunk(); got != WindowReady {
		t.Fatalf("TryAdvanceChunk() final = %v, want WindowReady", got)
	}
	if got := s.TryAdvanceChunk(); got != Overrun {
		t.Fatalf("TryAdvanceChunk() after ready = %v, want Overrun", got)
	}
}

func TestSampleStatsAndAdvanceIndexAlwaysReturnsFullWindow(t *testing.T) {
	s := newTestState(t)

	full := s.SampleStatsAndAdvanceIndex(-100, 100, 0)
	if full != 2048 {
		t.Errorf("SampleStatsAndAdvanceIndex = %d, want 2048 (full window) regardless of level", full)
	}
	if s.Index() != HalfWindow {
		t.Errorf("Index() = %v, want HalfWindow after one advance", s.Index())
	}

	s.SampleStatsAndAdvanceIndex(-100, 100, 0)
	if s.Index() != FullWindow {
		t.Errorf("Index() = %v, want FullWindow after two advances", s.Index())
	}

	s.SampleStatsAndAdvanceIndex(-100, 100, 0)
	if s.Index() != FullWindow {
		t.Errorf("Index() = %v, want FullWindow to saturate", s.Index())
	}
}

func TestRestartTransfersResetsChunkCount(t *testing.T) {
	s := newTestState(t)
	s.TryAdvanceChunk()
	s.TryAdvanceChunk()
	if s.ChunksDone() == 0 {
		t.Fatalf("expected non-zero chunks done before restart")
	}
	s.RestartTransfers()
	if got := s.ChunksDone(); got != 0 {
		t.Errorf("ChunksDone() after restart = %d, want 0", got)
	}
}
