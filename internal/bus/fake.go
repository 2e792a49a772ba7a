package bus

import "sync"

// FakeDevice is an in-memory Channel for tests: it serves chunks from
// a pre-seeded waveform instead of talking to hardware.
type FakeDevice struct {
	mu sync.Mutex

	info   Info
	source []int16 // samples served in order, wrapping if exhausted

	speedHz         uint32
	samplesPerChunk uint16
	pdmSampleWidth  uint16

	chunksServed int
	closed       bool
}

// NewFakeDevice returns a FakeDevice reporting the given geometry and
// serving samples from source (repeating it if a caller asks for more
// than len(source)).
func NewFakeDevice(info Info, source []int16) *FakeDevice {
	return &FakeDevice{info: info, source: source}
}

func (f *FakeDevice) Open() (Info, error) {
	return f.info, nil
}

func (f *FakeDevice) SetParams(speedHz uint32, samplesPerChunk, pdmSampleWidthBytes uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speedHz = speedHz
	f.samplesPerChunk = samplesPerChunk
	f.pdmSampleWidth = pdmSampleWidthBytes
	return nil
}

func (f *FakeDevice) ReadChunk(dst []int16, offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int(f.samplesPerChunk)
	for i := 0; i < n; i++ {
		srcIdx := (f.chunksServed*n + i) % len(f.source)
		dst[offset+i] = f.source[srcIdx]
	}
	f.chunksServed++
	return nil
}

func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeDevice) ChunksServed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunksServed
}
