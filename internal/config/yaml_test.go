package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error reading a missing explicit path")
	}
	if cfg != nil {
		t.Fatalf("expected nil config on error")
	}

	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") = %v", err)
	}
	if cfg.Sampling.Default != 2048 {
		t.Errorf("default sampling frequency = %d, want 2048", cfg.Sampling.Default)
	}
	if cfg.Ring.Capacity != 5 {
		t.Errorf("ring capacity = %d, want 5", cfg.Ring.Capacity)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
debug: true
device:
  path: /dev/custom_spi
sampling:
  frequencies: [4096, 2048, 1024, 512]
  default: 1024
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Debug {
		t.Errorf("Debug = false, want true")
	}
	if cfg.Device.Path != "/dev/custom_spi" {
		t.Errorf("Device.Path = %q", cfg.Device.Path)
	}
	if cfg.Sampling.Default != 1024 {
		t.Errorf("Sampling.Default = %d, want 1024", cfg.Sampling.Default)
	}
}

func TestValidateRejectsBadTable(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty table", func() Config { c := defaultConfig(); c.Sampling.Frequencies = nil; return c }()},
		{"not power of two", func() Config {
			c := defaultConfig()
			c.Sampling.Frequencies = []uint32{4096, 3000, 1024, 512}
			return c
		}()},
		{"not descending", func() Config {
			c := defaultConfig()
			c.Sampling.Frequencies = []uint32{1024, 2048, 512}
			return c
		}()},
		{"default not in table", func() Config {
			c := defaultConfig()
			c.Sampling.Default = 8192
			return c
		}()},
		{"zero ring capacity", func() Config {
			c := defaultConfig()
			c.Ring.Capacity = 0
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}
