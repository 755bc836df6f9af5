package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"refbind/internal/driver"
	"refbind/internal/observ"
	"refbind/internal/source"
	"refbind/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Re-check units whenever they change",
	Long: `Watch checks every unit below dir once, then re-checks the units that
change on disk until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInstrumentation(cmd, func() error {
			return runWatch(cmd, args)
		})
	},
}

func init() {
	addAnalysisFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before re-checking")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := targetArg(args)
	if info, err := os.Stat(dir); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	out, err := readOutputOptions(cmd)
	if err != nil {
		return err
	}
	debounce, err := durationFlag(cmd, "debounce")
	if err != nil {
		return err
	}
	cfg, cfgErr, err := loadConfig(cmd, dir)
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w, err := watch.New(dir, driver.UnitExt, debounce)
	if err != nil {
		return err
	}
	defer w.Close()

	base, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	first, err := driver.Check(ctx, dir, dopts)
	if err != nil {
		return err
	}
	if err := renderCheck(cmd.OutOrStdout(), first, out); err != nil {
		return err
	}

	err = w.Run(ctx, func(ctx context.Context, changed []string) error {
		var present []string
		for _, p := range changed {
			if _, statErr := os.Stat(p); statErr == nil {
				present = append(present, p)
			}
		}
		if len(present) == 0 {
			return nil
		}
		if !out.quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "re-checking %d unit(s)\n", len(present))
		}
		if dopts.Timings {
			dopts.Timer = observ.NewTimer()
			out.timer = dopts.Timer
		}
		// новый FileSet на каждый проход: старые версии файлов не нужны
		res, err := driver.CheckFiles(ctx, source.NewFileSetWithBase(base), present, dopts)
		if err != nil {
			return err
		}
		return renderCheck(cmd.OutOrStdout(), res, out)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
