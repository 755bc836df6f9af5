package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"refbind/internal/config"
	"refbind/internal/diagfmt"
	"refbind/internal/driver"
	"refbind/internal/observ"
)

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Check unit scripts for binding and consistency errors",
	Long: `Check analyzes a single .rbu unit or every unit below a directory.
Each unit is parsed, its mode regions tracked and every binding site
resolved; results are reported per unit in path order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInstrumentation(cmd, func() error {
			return runCheck(cmd, args)
		})
	},
}

func init() {
	addAnalysisFlags(checkCmd)
	checkCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

func targetArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

// readOutputOptions collects rendering flags.
func readOutputOptions(cmd *cobra.Command) (outputOptions, error) {
	var opts outputOptions
	formatFlag, err := cmd.Flags().GetString("format")
	if err != nil {
		return opts, fmt.Errorf("failed to get format flag: %w", err)
	}
	if opts.format, err = readFormat(formatFlag); err != nil {
		return opts, err
	}
	if opts.color, err = useColor(cmd); err != nil {
		return opts, err
	}
	if opts.quiet, err = cmd.Root().PersistentFlags().GetBool("quiet"); err != nil {
		return opts, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if opts.withNotes, err = cmd.Flags().GetBool("with-notes"); err != nil {
		return opts, fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	if opts.suggest, err = cmd.Flags().GetBool("suggest"); err != nil {
		return opts, fmt.Errorf("failed to get suggest flag: %w", err)
	}
	if opts.preview, err = cmd.Flags().GetBool("preview"); err != nil {
		return opts, fmt.Errorf("failed to get preview flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return opts, fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	opts.pathMode = diagfmt.PathModeAuto
	if fullPath {
		opts.pathMode = diagfmt.PathModeAbsolute
	}
	opts.args = os.Args[1:]
	return opts, nil
}

// readDriverOptions builds the driver options for cfg.
func readDriverOptions(cmd *cobra.Command, cfg *config.Config) (driver.Options, error) {
	opts := driver.Options{Config: cfg}

	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return opts, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if timings {
		opts.Timer = observ.NewTimer()
		opts.Timings = true
	}

	diskCache, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return opts, fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	if diskCache {
		cache, err := driver.OpenDiskCache("refbind")
		if err != nil {
			// без кэша проверка всё равно работает
			fmt.Fprintf(cmd.ErrOrStderr(), "disk cache disabled: %v\n", err)
		} else {
			opts.Cache = cache
		}
	}
	return opts, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	target := targetArg(args)
	out, err := readOutputOptions(cmd)
	if err != nil {
		return err
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	progress, err := readProgressMode(uiFlag)
	if err != nil {
		return err
	}

	cfg, cfgErr, err := loadConfig(cmd, target)
	if err != nil {
		return err
	}
	if cfgErr != nil {
		if err := renderConfigError(cmd.OutOrStdout(), cfgErr, out); err != nil {
			return err
		}
		return errReported
	}

	dopts, err := readDriverOptions(cmd, cfg)
	if err != nil {
		return err
	}
	out.timer = dopts.Timer
	ctx := cmd.Context()

	var res *driver.CheckResult
	files, err := driver.ListUnits(target)
	if err != nil {
		return err
	}
	if out.format == "pretty" && !out.quiet && progress.showProgress(len(files), stdoutIsTerminal()) {
		title := "checking " + filepath.Base(filepath.Clean(target))
		res, err = runCheckWithUI(ctx, title, target, files, dopts)
		if err != nil {
			return err
		}
	} else {
		res, err = driver.Check(ctx, target, dopts)
		if err != nil {
			return err
		}
	}

	if len(res.Units) == 0 {
		return errors.New("no units found in " + target)
	}
	if err := renderCheck(cmd.OutOrStdout(), res, out); err != nil {
		return err
	}
	if res.HasErrors() {
		return errReported
	}
	return nil
}
