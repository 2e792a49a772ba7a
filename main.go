// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flicker/cmd"
	"flicker/internal/config"
	applog "flicker/internal/log"
	"flicker/pkg/sensor"
)

// The program flow mirrors the library's own lifecycle:
//
// 1. Startup (Cold Path):
//   - Parse command-line arguments
//   - Load YAML configuration, apply CLI overrides
//   - Handle one-off commands that exit without opening the sensor
//
// 2. Concurrent Phase (Hot Path):
//   - OpenSensor, optionally Configure, StartSensor
//   - Poll in a loop (or hand off to the watch TUI) until the count
//     is reached or an interrupt arrives
//
// 3. Shutdown (Cold Path):
//   - StopSensor, CloseSensor
func main() {
	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		applog.Fatalf("failed to load configuration: %v", err)
	}
	if opts.DevicePath != "" {
		cfg.Device.Path = opts.DevicePath
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if opts.Verbose || cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	iface := sensor.GetSpectralSensorInterface(cfg)

	if opts.ShowInfo {
		printInfo(iface)
		return
	}

	if rc := iface.OpenSensor(); rc != sensor.OK {
		applog.Fatalf("OpenSensor failed: return code %d", rc)
	}
	defer func() {
		if rc := iface.CloseSensor(); rc != sensor.OK {
			applog.Errorf("CloseSensor failed: return code %d", rc)
		}
	}()

	if opts.Frequency != 0 {
		param := sensor.ConfigureParameter{Type: sensor.ConfigSamplingFrequency, Value: opts.Frequency}
		if rc := iface.Configure(param); rc != sensor.OK {
			applog.Fatalf("Configure(%d Hz) failed: return code %d", opts.Frequency, rc)
		}
	}

	if rc := iface.StartSensor(); rc != sensor.OK {
		applog.Fatalf("StartSensor failed: return code %d", rc)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if opts.Watch {
		if err := cmd.RunWatch(iface); err != nil {
			applog.Errorf("watch UI exited with error: %v", err)
		}
	} else {
		runPoll(iface, opts, quit)
	}

	if rc := iface.StopSensor(); rc != sensor.OK {
		applog.Errorf("StopSensor failed: return code %d", rc)
	}
}

// runPoll prints results to stdout until opts.PollCount have been
// printed (0 means run until interrupted) or quit fires.
func runPoll(iface sensor.Interface, opts *cmd.Options, quit chan os.Signal) {
	printed := 0
	for opts.PollCount == 0 || printed < opts.PollCount {
		select {
		case <-quit:
			applog.Infof("interrupt received, stopping")
			return
		default:
		}

		results, rc := iface.PollSensorData(1)
		if rc != sensor.OK {
			applog.Errorf("PollSensorData failed: return code %d", rc)
			return
		}
		for _, r := range results {
			printResult(r)
			printed++
		}
		time.Sleep(opts.PollEvery)
	}
}

func printResult(r sensor.NCSDataMultiSpectralSensor) {
	f := r.Flicker
	fmt.Printf("flicker: 1st=%.1fHz(%.0f) 2nd=%.1fHz(%.0f) avg5=%.1f raw[min=%d max=%d avg=%d] @ %dHz\n",
		f.FirstMaximaPeak.FrequencyHz, f.FirstMaximaPeak.Amplitude,
		f.SecondMaximaPeak.FrequencyHz, f.SecondMaximaPeak.Amplitude,
		f.AvgTopFiveAmplitude,
		f.RawMin, f.RawMax, f.RawAvg,
		f.ConfiguredSamplingFlickerFreq)
}

func printInfo(iface sensor.Interface) {
	info, rc := iface.QuerySensorInfo(sensor.QueryDriverInformation)
	if rc != sensor.OK {
		applog.Fatalf("QuerySensorInfo(DriverInformation) failed: return code %d", rc)
	}
	di := info.(sensor.DriverInformation)
	fmt.Printf("%s  vendor=%s  hw=%s  driver=%s\n", di.Name, di.Vendor, di.HardwareVersion, di.DriverVersion)

	attrs, rc := iface.QuerySensorInfo(sensor.QuerySensorAttributes)
	if rc != sensor.OK {
		applog.Fatalf("QuerySensorInfo(Attributes) failed: return code %d", rc)
	}
	for _, a := range attrs.([]sensor.Attribute) {
		fmt.Printf("  %-18s [%.0f, %.0f]\n", a.Name, a.MinValue, a.MaxValue)
	}
}
