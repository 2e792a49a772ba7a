// Package config loads the driver's runtime configuration from in-code
// defaults, a YAML file, and environment variable overrides, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"flicker/pkg/bitint"
)

// Config holds every tunable of the driver that is not part of the
// public Configure() contract: the device node to open, the table of
// legal sampling frequencies, and the timeouts/capacities that only
// matter to the process hosting the driver.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`

	Device   DeviceConfig   `yaml:"device"`
	Sampling SamplingConfig `yaml:"sampling"`
	Timing   TimingConfig   `yaml:"timing"`
	Ring     RingConfig     `yaml:"ring"`
}

type DeviceConfig struct {
	Path                string `yaml:"path"`
	MeasureBusFrequency bool   `yaml:"measure_bus_frequency"`
}

// SamplingConfig carries the sampling-frequency table. Frequencies must
// be listed highest to lowest, matching Configure()'s "snap up to the
// least table entry >= request" rule.
type SamplingConfig struct {
	Frequencies []uint32 `yaml:"frequencies"`
	Default     uint32   `yaml:"default"`
}

type TimingConfig struct {
	PollTimeout      time.Duration `yaml:"poll_timeout"`
	CommandTimeout   time.Duration `yaml:"command_timeout"`
	CommandSpinSleep time.Duration `yaml:"command_spin_sleep"`
}

type RingConfig struct {
	Capacity int `yaml:"capacity"`
}

// DefaultBusFrequencyHz is the bus clock the device runs at absent
// measurement, and the reference frequency bus-drift correction is
// computed against.
const DefaultBusFrequencyHz = 4 * 1024 * 1024

// OneSecondBufferSize is the number of PDM sample bytes captured per
// second of flicker data at the default bus frequency.
const OneSecondBufferSize = DefaultBusFrequencyHz / 8

func defaultConfig() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Device: DeviceConfig{
			Path:                "/dev/vd628x_spi",
			MeasureBusFrequency: false,
		},
		Sampling: SamplingConfig{
			Frequencies: []uint32{4096, 2048, 1024, 512},
			Default:     2048,
		},
		Timing: TimingConfig{
			PollTimeout:      time.Second,
			CommandTimeout:   time.Second,
			CommandSpinSleep: 100 * time.Microsecond,
		},
		Ring: RingConfig{
			Capacity: 5,
		},
	}
}

// LoadConfig reads path (or, if path is empty, "config.yaml" in the
// working directory when present) into a Config seeded with defaults,
// then applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the invariants the rest of the driver relies on: a
// non-empty, strictly descending, all-power-of-two frequency table
// whose default value is a member.
func (c *Config) Validate() error {
	if len(c.Sampling.Frequencies) == 0 {
		return fmt.Errorf("sampling.frequencies must not be empty")
	}
	for i, f := range c.Sampling.Frequencies {
		if !bitint.IsPowerOfTwo(int(f)) {
			return fmt.Errorf("sampling.frequencies[%d] = %d is not a power of two", i, f)
		}
		if OneSecondBufferSize%f != 0 {
			return fmt.Errorf("sampling.frequencies[%d] = %d does not evenly divide the one-second buffer", i, f)
		}
		if i > 0 && c.Sampling.Frequencies[i] >= c.Sampling.Frequencies[i-1] {
			return fmt.Errorf("sampling.frequencies must be strictly descending")
		}
	}
	found := false
	for _, f := range c.Sampling.Frequencies {
		if f == c.Sampling.Default {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("sampling.default %d is not in sampling.frequencies", c.Sampling.Default)
	}
	if c.Ring.Capacity <= 0 {
		return fmt.Errorf("ring.capacity must be positive")
	}
	if c.Timing.PollTimeout <= 0 || c.Timing.CommandTimeout <= 0 {
		return fmt.Errorf("timing.poll_timeout and timing.command_timeout must be positive")
	}
	return nil
}

func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = b
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(val)
	}
	if val, ok := os.LookupEnv("ENV_DEVICE_PATH"); ok {
		cfg.Device.Path = val
	}
	if val, ok := os.LookupEnv("ENV_MEASURE_BUS_FREQUENCY"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Device.MeasureBusFrequency = b
		}
	}
	if val, ok := os.LookupEnv("ENV_DEFAULT_SAMPLING_FREQUENCY"); ok {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			cfg.Sampling.Default = uint32(n)
		}
	}
	if val, ok := os.LookupEnv("ENV_POLL_TIMEOUT"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Timing.PollTimeout = d
		}
	}
	if val, ok := os.LookupEnv("ENV_COMMAND_TIMEOUT"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Timing.CommandTimeout = d
		}
	}
}
