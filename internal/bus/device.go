// Package bus talks to the flicker sensor's character device. It
// issues the three control operations the device exposes — query
// transfer geometry, configure sampling parameters, and pull one
// chunk of PDM samples — and helps the caller measure the bus's
// effective clock when it drifts from its nominal value.
package bus

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Info describes the transfer geometry the device reports at open
// time: how many bytes make up one chunk transfer, and the fastest
// clock the bus can run at.
type Info struct {
	ChunkSize      uint32
	MaxFrequencyHz uint32
}

// Channel is the device-facing half of the capture pipeline. A real
// CharDevice and a fake, in-memory implementation both satisfy it, so
// capture and detect-worker logic can be tested without hardware.
type Channel interface {
	// Open opens the device node and returns its transfer geometry.
	Open() (Info, error)
	// SetParams configures the bus speed and the sample layout of
	// each chunk transfer.
	SetParams(speedHz uint32, samplesPerChunk uint16, pdmSampleWidthBytes uint16) error
	// ReadChunk blocks until one chunk of samples is available and
	// writes it into dst starting at sample index offset.
	ReadChunk(dst []int16, offset int) error
	// Close releases the device node.
	Close() error
}

// CharDevice is the real Channel, backed by ioctl calls against a
// character device such as /dev/vd628x_spi.
type CharDevice struct {
	path string
	fd   int
}

// NewCharDevice returns a Channel bound to path. Open must be called
// before any other method.
func NewCharDevice(path string) *CharDevice {
	return &CharDevice{path: path, fd: -1}
}

func (d *CharDevice) Open() (Info, error) {
	fd, err := unix.Open(d.path, unix.O_RDWR, 0)
	if err != nil {
		return Info{}, fmt.Errorf("bus: open %s: %w", d.path, err)
	}

	var raw rawSpiInfo
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), iocGetSPIInfo, uintptr(unsafe.Pointer(&raw))); errno != 0 {
		unix.Close(fd)
		return Info{}, fmt.Errorf("bus: GET_SPI_INFO: %w", errno)
	}
	if raw.ChunkSize == 0 || raw.SpiMaxFrequency == 0 {
		unix.Close(fd)
		return Info{}, fmt.Errorf("bus: device reported zero chunk size or max frequency")
	}

	d.fd = fd
	return Info{ChunkSize: raw.ChunkSize, MaxFrequencyHz: raw.SpiMaxFrequency}, nil
}

func (d *CharDevice) SetParams(speedHz uint32, samplesPerChunk, pdmSampleWidthBytes uint16) error {
	raw := rawSpiParams{SpeedHz: speedHz, SamplesPerChunk: samplesPerChunk, PDMSampleWidth: pdmSampleWidthBytes}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), iocSetSPIParams, uintptr(unsafe.Pointer(&raw))); errno != 0 {
		return fmt.Errorf("bus: SET_SPI_PARAMS: %w", errno)
	}
	return nil
}

func (d *CharDevice) ReadChunk(dst []int16, offset int) error {
	if offset < 0 || offset >= len(dst) {
		return fmt.Errorf("bus: chunk offset %d outside buffer of %d samples", offset, len(dst))
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), iocGetChunkSamples, uintptr(unsafe.Pointer(&dst[offset]))); errno != 0 {
		return fmt.Errorf("bus: GET_CHUNK_SAMPLES: %w", errno)
	}
	return nil
}

func (d *CharDevice) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// FrequencyMeter tracks the effective bus clock across one capture
// window by timestamping its first and last-but-one chunk transfer,
// the same bracketing the original platform code uses. When disabled
// it reports a fixed value instead of measuring.
type FrequencyMeter struct {
	enabled   bool
	fixedHz   uint32
	chunkSize uint32

	start      time.Time
	haveStart  bool
	measuredHz uint32
}

// NewFrequencyMeter builds a meter. If enabled is false, EffectiveHz
// always returns fixedHz.
func NewFrequencyMeter(enabled bool, fixedHz, chunkSizeBytes uint32) *FrequencyMeter {
	return &FrequencyMeter{enabled: enabled, fixedHz: fixedHz, chunkSize: chunkSizeBytes, measuredHz: fixedHz}
}

// OnChunkStart marks the moment the first chunk of a window completed.
func (m *FrequencyMeter) OnChunkStart() {
	if !m.enabled {
		return
	}
	m.start = time.Now()
	m.haveStart = true
}

// OnChunkBeforeLast marks the moment the last-but-one chunk of a
// window completed and derives the effective bit rate from the
// elapsed time since OnChunkStart.
func (m *FrequencyMeter) OnChunkBeforeLast(chunksSoFar uint32) {
	if !m.enabled || !m.haveStart {
		return
	}
	elapsed := time.Since(m.start)
	if elapsed <= 0 || chunksSoFar == 0 {
		return
	}
	bits := float64(chunksSoFar) * float64(m.chunkSize) * 8
	m.measuredHz = uint32(bits * float64(time.Second) / float64(elapsed))
	m.haveStart = false
}

// EffectiveHz returns the most recently measured (or fixed) bus
// frequency.
func (m *FrequencyMeter) EffectiveHz() uint32 {
	return m.measuredHz
}
