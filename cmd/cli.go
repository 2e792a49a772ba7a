// Package cmd parses the flickerctl harness's command-line arguments.
// It is an external collaborator of the core driver — the CLI/test
// harness that loads the library and prints results — not part of the
// capture-and-analysis pipeline itself.
package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"flicker/pkg/build"
)

// Options holds everything ParseArgs extracted from argv: which
// config file to load, the ad hoc overrides a quick invocation wants
// without editing YAML, and which of the harness's three modes to run.
type Options struct {
	ConfigPath string
	DevicePath string
	Frequency  uint32
	PollCount  int
	PollEvery  time.Duration
	Verbose    bool

	ShowInfo bool
	Watch    bool
}

// ParseArgs builds the root cobra command and executes it against
// args (typically os.Args[1:]), returning the resulting Options.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{PollCount: 10, PollEvery: 250 * time.Millisecond}

	root := &cobra.Command{
		Use:           "flickerctl",
		Short:         "Poll the vd628x flicker sensor for dominant ambient-light frequencies",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}
	root.SetHelpCommand(&cobra.Command{Hidden: true})
	root.SetVersionTemplate(buildInfo.Summary() + "\n")

	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"Path to a YAML config file (default: config.yaml in the working directory, if present)")
	root.PersistentFlags().StringVarP(&opts.DevicePath, "device", "d", "",
		"Override the device node path (default: from config)")
	root.PersistentFlags().Uint32VarP(&opts.Frequency, "frequency", "f", 0,
		"Override the sampling frequency in Hz (snapped upward to the nearest supported rate)")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"Enable debug logging")
	root.PersistentFlags().IntVarP(&opts.PollCount, "count", "n", 10,
		"Number of results to print before exiting (0 = run until interrupted)")
	root.PersistentFlags().DurationVar(&opts.PollEvery, "interval", 250*time.Millisecond,
		"Minimum delay between successive PollSensorData calls")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print driver and attribute metadata and exit",
		Run: func(cmd *cobra.Command, args []string) {
			opts.ShowInfo = true
		},
	}
	root.AddCommand(infoCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Launch a live terminal viewer of poll results",
		Run: func(cmd *cobra.Command, args []string) {
			opts.Watch = true
		},
	}
	root.AddCommand(watchCmd)

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return nil, err
	}
	return opts, nil
}
