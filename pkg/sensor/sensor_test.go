package sensor

import (
	"testing"
	"time"

	"flicker/internal/config"
)

func testConfig(devicePath string) *config.Config {
	return &config.Config{
		Device: config.DeviceConfig{Path: devicePath},
		Sampling: config.SamplingConfig{
			Frequencies: []uint32{4096, 2048, 1024, 512},
			Default:     2048,
		},
		Timing: config.TimingConfig{
			PollTimeout:    50 * time.Millisecond,
			CommandTimeout: 20 * time.Millisecond,
		},
		Ring: config.RingConfig{Capacity: 5},
	}
}

func TestOpenSensorDeviceAbsent(t *testing.T) {
	iface := GetSpectralSensorInterface(testConfig("/dev/this-path-does-not-exist-vd628x"))

	if rc := iface.OpenSensor(); rc != ErrDeviceAbsent {
		t.Fatalf("OpenSensor() = %d, want ErrDeviceAbsent (%d)", rc, ErrDeviceAbsent)
	}

	// No session was created, so a subsequent Configure must also fail.
	if rc := iface.Configure(ConfigureParameter{Type: ConfigSamplingFrequency, Value: 1024}); rc != ErrGeneric {
		t.Errorf("Configure() after failed Open = %d, want ErrGeneric", rc)
	}
}

func TestOnlyOneSessionAtATime(t *testing.T) {
	registered.Store(false)
	t.Cleanup(func() { registered.Store(false) })

	first := GetSpectralSensorInterface(testConfig("/dev/still-absent-vd628x"))
	second := GetSpectralSensorInterface(testConfig("/dev/still-absent-vd628x"))

	// Simulate an already-open session by setting the registration atom
	// directly, mirroring what a successful OpenSensor against real
	// hardware would have done.
	if !registered.CompareAndSwap(false, true) {
		t.Fatalf("expected to acquire registration")
	}
	if rc := second.OpenSensor(); rc != ErrGeneric {
		t.Errorf("second OpenSensor() while registered = %d, want ErrGeneric", rc)
	}
	registered.Store(false)

	_ = first
}

func TestQuerySensorInfo(t *testing.T) {
	iface := GetSpectralSensorInterface(testConfig("/dev/unused"))

	info, rc := iface.QuerySensorInfo(QueryDriverInformation)
	if rc != OK {
		t.Fatalf("QuerySensorInfo(DriverInformation) rc = %d, want OK", rc)
	}
	di, ok := info.(DriverInformation)
	if !ok || di.Name == "" {
		t.Errorf("QuerySensorInfo(DriverInformation) = %#v, want populated DriverInformation", info)
	}

	attrs, rc := iface.QuerySensorInfo(QuerySensorAttributes)
	if rc != OK {
		t.Fatalf("QuerySensorInfo(Attributes) rc = %d, want OK", rc)
	}
	list, ok := attrs.([]Attribute)
	if !ok || len(list) == 0 {
		t.Errorf("QuerySensorInfo(Attributes) = %#v, want non-empty []Attribute", attrs)
	}
}
