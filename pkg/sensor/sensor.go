// Package sensor is the public façade of the vd628x flicker driver: the
// data types and the seven-operation vtable GetSpectralSensorInterface
// returns. It owns the process-wide "only one session exists" rule,
// enforced with an explicit registration atom rather than a global
// session pointer, and translates between internal/session's plain
// structs and the driver's wire-level types; it holds no capture or
// concurrency logic of its own.
package sensor

import (
	"errors"
	"sync"
	"sync/atomic"

	"flicker/internal/bus"
	"flicker/internal/config"
	"flicker/internal/detect"
	applog "flicker/internal/log"
	"flicker/internal/session"
)

// ReturnCode mirrors the three-valued C ABI the original driver
// exposes: zero on success, -1 on generic failure, -2 specifically
// from OpenSensor when the device node is absent.
type ReturnCode int32

const (
	OK              ReturnCode = 0
	ErrGeneric      ReturnCode = -1
	ErrDeviceAbsent ReturnCode = -2
)

// ConfigurationType enumerates the kinds of Configure call the
// original interface defines. Only SamplingFrequency is live; the
// other two exist for interface completeness and always fail, since
// only the flicker channel is driven.
type ConfigurationType int

const (
	ConfigSamplingFrequency ConfigurationType = iota
	ConfigSamplingTime
	ConfigQTimeStamp
)

// ConfigureParameter is the payload of a Configure call.
type ConfigureParameter struct {
	Type  ConfigurationType
	Value uint32
}

// DriverInformation is static metadata about the device, returned by
// QuerySensorInfo(QueryDriverInformation).
type DriverInformation struct {
	Name            string
	Vendor          string
	HardwareVersion string
	DriverVersion   string
}

// Attribute describes the legal range of one tunable the device
// exposes as metadata. Only exposureTime and samplingFrequency are
// populated; neither is a control the core acts on beyond reporting
// its range.
type Attribute struct {
	Name     string
	MinValue float64
	MaxValue float64
}

// QueryPayloadType selects which metadata QuerySensorInfo returns.
type QueryPayloadType int

const (
	QueryDriverInformation QueryPayloadType = iota
	QuerySensorAttributes
)

// SpectralFrequencyInfo is one spectral peak: its frequency in Hz
// (already bus-drift corrected) and its FFT magnitude.
type SpectralFrequencyInfo struct {
	FrequencyHz float64
	Amplitude   float64
}

// SpectralFlickerFrequencyInfo is the public shape of one completed
// window's result: the two strongest peaks, the average magnitude of
// the top five bins, the raw pre-DC-removal statistics, the reserved
// channel gain, and the sampling frequency in effect when it was
// computed.
type SpectralFlickerFrequencyInfo struct {
	FirstMaximaPeak               SpectralFrequencyInfo
	SecondMaximaPeak              SpectralFrequencyInfo
	AvgTopFiveAmplitude           float64
	RawMin                        int16
	RawMax                        int16
	RawAvg                        int16
	ChannelGain                   float64
	ConfiguredSamplingFlickerFreq uint32
}

// NCSDataMultiSpectralSensor is the top-level poll payload. Only the
// flicker channel is live, so it carries a single
// SpectralFlickerFrequencyInfo.
type NCSDataMultiSpectralSensor struct {
	Flicker SpectralFlickerFrequencyInfo
}

// Interface is the vtable GetSpectralSensorInterface returns.
type Interface interface {
	QuerySensorInfo(payload QueryPayloadType) (any, ReturnCode)
	OpenSensor() ReturnCode
	Configure(param ConfigureParameter) ReturnCode
	StartSensor() ReturnCode
	PollSensorData(maxResults int) ([]NCSDataMultiSpectralSensor, ReturnCode)
	StopSensor() ReturnCode
	CloseSensor() ReturnCode
}

// Static driver identity and attribute-range metadata.
var (
	driverInfo = DriverInformation{
		Name:            "vd628x_spi",
		Vendor:          "vendor",
		HardwareVersion: "1.0",
		DriverVersion:   "1.0.0",
	}

	// exposureTime's range matches MIN_EXPOSURE_TIME_IN_US +
	// CALCULATION_TIME_IN_US from the original source (2000 + 6000 =
	// 8000µs floor) through the device's documented ceiling.
	attributes = []Attribute{
		{Name: "exposureTime", MinValue: 8000, MaxValue: 1606000},
		{Name: "samplingFrequency", MinValue: 512, MaxValue: 4096},
	}
)

// registered enforces "only one session exists at a time" across the
// process. Open sets it; Close clears it. A process-wide registration
// atom instead of a bare global pointer keeps the check itself
// lock-free and race-detector-clean.
var registered atomic.Bool

// facade owns one Session across its Open/Close lifecycle. It is the
// concrete type GetSpectralSensorInterface returns, boxed behind
// Interface so callers depend only on the vtable shape.
type facade struct {
	mu   sync.Mutex
	cfg  *config.Config
	sess *session.Session
}

// GetSpectralSensorInterface returns a fresh façade bound to cfg. Each
// call returns an independent handle, but only one of them may
// successfully OpenSensor at a time.
func GetSpectralSensorInterface(cfg *config.Config) Interface {
	return &facade{cfg: cfg}
}

func (f *facade) QuerySensorInfo(payload QueryPayloadType) (any, ReturnCode) {
	switch payload {
	case QueryDriverInformation:
		return driverInfo, OK
	case QuerySensorAttributes:
		return attributes, OK
	default:
		return nil, ErrGeneric
	}
}

func (f *facade) OpenSensor() ReturnCode {
	if !registered.CompareAndSwap(false, true) {
		applog.Warnf("sensor: OpenSensor called while a session is already open")
		return ErrGeneric
	}

	dev := bus.NewCharDevice(f.cfg.Device.Path)
	sess, err := session.Open(dev, f.cfg)
	if err != nil {
		registered.Store(false)
		if errors.Is(err, session.ErrDeviceAbsent) {
			return ErrDeviceAbsent
		}
		applog.Errorf("sensor: OpenSensor failed: %v", err)
		return ErrGeneric
	}

	f.mu.Lock()
	f.sess = sess
	f.mu.Unlock()
	return OK
}

func (f *facade) activeSession() *session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *facade) Configure(param ConfigureParameter) ReturnCode {
	sess := f.activeSession()
	if sess == nil {
		return ErrGeneric
	}
	if param.Type != ConfigSamplingFrequency {
		// SamplingTime and QTimeStamp exist for interface completeness
		// only; no non-flicker channel is live to configure.
		return ErrGeneric
	}
	if err := sess.Configure(param.Value); err != nil {
		applog.Errorf("sensor: Configure(%d) failed: %v", param.Value, err)
		return ErrGeneric
	}
	return OK
}

func (f *facade) StartSensor() ReturnCode {
	sess := f.activeSession()
	if sess == nil {
		return ErrGeneric
	}
	if err := sess.Start(); err != nil {
		applog.Errorf("sensor: StartSensor failed: %v", err)
		return ErrGeneric
	}
	return OK
}

func (f *facade) PollSensorData(maxResults int) ([]NCSDataMultiSpectralSensor, ReturnCode) {
	sess := f.activeSession()
	if sess == nil {
		return nil, ErrGeneric
	}
	if maxResults < 0 {
		maxResults = 0
	}
	buf := make([]detect.Result, maxResults)
	n, err := sess.Poll(maxResults, buf)
	if err != nil {
		applog.Errorf("sensor: PollSensorData failed: %v", err)
		return nil, ErrGeneric
	}
	out := make([]NCSDataMultiSpectralSensor, n)
	for i := 0; i < n; i++ {
		out[i] = toPublic(buf[i])
	}
	return out, OK
}

func (f *facade) StopSensor() ReturnCode {
	sess := f.activeSession()
	if sess == nil {
		return ErrGeneric
	}
	if err := sess.Stop(); err != nil {
		applog.Errorf("sensor: StopSensor failed: %v", err)
		return ErrGeneric
	}
	return OK
}

func (f *facade) CloseSensor() ReturnCode {
	sess := f.activeSession()
	if sess == nil {
		return ErrGeneric
	}
	if err := sess.Close(); err != nil {
		applog.Errorf("sensor: CloseSensor failed: %v", err)
		return ErrGeneric
	}

	f.mu.Lock()
	f.sess = nil
	f.mu.Unlock()
	registered.Store(false)
	return OK
}

func toPublic(r detect.Result) NCSDataMultiSpectralSensor {
	return NCSDataMultiSpectralSensor{
		Flicker: SpectralFlickerFrequencyInfo{
			FirstMaximaPeak:               SpectralFrequencyInfo{FrequencyHz: r.FirstPeakFreqHz, Amplitude: r.FirstPeakAmpl},
			SecondMaximaPeak:              SpectralFrequencyInfo{FrequencyHz: r.SecondPeakFreqHz, Amplitude: r.SecondPeakAmpl},
			AvgTopFiveAmplitude:           r.AvgTopFiveAmpl,
			RawMin:                        r.MinRaw,
			RawMax:                        r.MaxRaw,
			RawAvg:                        r.AvgRaw,
			ChannelGain:                   1.0,
			ConfiguredSamplingFlickerFreq: r.SamplingFrequency,
		},
	}
}
