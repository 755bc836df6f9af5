package main

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"refbind/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "refbind",
	Short:         "Reference binding rules checker",
	Long:          `refbind resolves reference bindings under the legacy and proposed rule sets and checks unit scripts for consistency`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errReported means the command already printed its diagnostics; main only
// sets the exit status.
var errReported = errors.New("errors reported")

var registerOnce sync.Once

// registerCommands attaches the subcommands and persistent flags to rootCmd.
func registerCommands() {
	registerOnce.Do(func() {
		// Устанавливаем версию для автоматического флага --version
		rootCmd.Version = version.Version

		rootCmd.AddCommand(checkCmd)
		rootCmd.AddCommand(resolveCmd)
		rootCmd.AddCommand(deduceCmd)
		rootCmd.AddCommand(tableCmd)
		rootCmd.AddCommand(watchCmd)
		rootCmd.AddCommand(fixCmd)
		rootCmd.AddCommand(versionCmd)

		// Глобальные флаги
		flags := rootCmd.PersistentFlags()
		flags.String("color", "auto", "colorize output (auto|on|off)")
		flags.Bool("quiet", false, "suppress non-essential output")
		flags.Bool("timings", false, "show timing information")
		flags.Int("max-diagnostics", 100, "maximum number of diagnostics per unit")

		flags.String("trace", "", "write trace events to file (- for stderr)")
		flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
		flags.String("trace-mode", "ring", "trace storage (stream|ring|both)")
		flags.Int("trace-ring-size", 4096, "events kept by the ring tracer")
		flags.Duration("trace-heartbeat", 0, "heartbeat interval, 0 disables")

		flags.String("cpu-profile", "", "write a CPU profile to file")
		flags.String("mem-profile", "", "write a heap profile to file on exit")
		flags.String("runtime-trace", "", "write a Go runtime trace to file")
	})
}

// main registers the CLI and runs the root command. Any error exits with
// status 1.
func main() {
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "refbind: %v\n", err)
		}
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color flag against the output terminal.
func useColor(cmd *cobra.Command) (bool, error) {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch colorFlag {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto", "":
		return isTerminal(os.Stdout), nil
	}
	return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorFlag)
}

// withInstrumentation installs tracing and profiling around run.
func withInstrumentation(cmd *cobra.Command, run func() error) (err error) {
	traceCleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer traceCleanup()

	profCleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer profCleanup()

	defer dumpTraceOnPanic(cmd)
	return run()
}

func durationFlag(cmd *cobra.Command, name string) (time.Duration, error) {
	d, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	return d, nil
}
