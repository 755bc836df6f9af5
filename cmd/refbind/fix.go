package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"refbind/internal/driver"
	"refbind/internal/fix"
)

var fixCmd = &cobra.Command{
	Use:   "fix [flags] [path]",
	Short: "Apply suggested fixes to unit scripts",
	Long:  "Check the units, then apply the suggested fixes that carry edits, such as a replacement reference form or a missing pop.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInstrumentation(cmd, func() error {
			return runFix(cmd, args)
		})
	},
}

func init() {
	fixCmd.Flags().Bool("all", false, "apply every fix that does not conflict")
	fixCmd.Flags().Bool("once", false, "apply the first available fix (default)")
	fixCmd.Flags().String("id", "", "apply the fix with this identifier")
	fixCmd.Flags().Bool("list", false, "list fix identifiers without applying")
	fixCmd.Flags().Bool("dry-run", false, "report changes without writing files")
	fixCmd.Flags().String("policy", "universal", "deduction policy for forwarding forms (universal|split)")
	fixCmd.Flags().Int("jobs", 0, "units analyzed in parallel (0 = GOMAXPROCS)")
}

func runFix(cmd *cobra.Command, args []string) error {
	target := targetArg(args)

	applyAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return fmt.Errorf("failed to get all flag: %w", err)
	}
	applyOnce, err := cmd.Flags().GetBool("once")
	if err != nil {
		return fmt.Errorf("failed to get once flag: %w", err)
	}
	targetID, err := cmd.Flags().GetString("id")
	if err != nil {
		return fmt.Errorf("failed to get id flag: %w", err)
	}
	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return fmt.Errorf("failed to get list flag: %w", err)
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}

	if targetID != "" && (applyAll || applyOnce) {
		return fmt.Errorf("--id cannot be combined with --all or --once")
	}
	if applyAll && applyOnce {
		return fmt.Errorf("--all and --once are mutually exclusive")
	}

	mode := fix.ApplyModeOnce
	if targetID != "" {
		mode = fix.ApplyModeID
	} else if applyAll {
		mode = fix.ApplyModeAll
	}

	cfg, cfgErr, err := loadConfig(cmd, target)
	if err != nil {
		return err
	}
	if cfgErr != nil {
		return fmt.Errorf("%s: %s", cfgErr.path, cfgErr.msg)
	}
	res, err := driver.Check(cmd.Context(), target, driver.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("fix: check failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if list {
		listFixes(out, res)
		return nil
	}
	applied, applyErr := fix.Apply(res.FileSet, res.Diagnostics(), fix.ApplyOptions{
		Mode:     mode,
		TargetID: targetID,
		DryRun:   dryRun,
	})
	return handleApplyResult(out, applied, applyErr, dryRun)
}

func listFixes(w io.Writer, res *driver.CheckResult) {
	n := 0
	for _, d := range res.Diagnostics() {
		for i, f := range d.Fixes {
			if len(f.Edits) == 0 {
				continue
			}
			fmt.Fprintf(w, "%s  %s (%d edits)\n", fix.FixID(d, i), f.Title, len(f.Edits))
			n++
		}
	}
	if n == 0 {
		fmt.Fprintln(w, "No applicable fixes found.")
	}
}

func handleApplyResult(w io.Writer, res *fix.ApplyResult, applyErr error, dryRun bool) error {
	if res == nil {
		return applyErr
	}

	if len(res.Applied) > 0 {
		verb := "Applied"
		if dryRun {
			verb = "Would apply"
		}
		fmt.Fprintf(w, "%s %d fix(es):\n", verb, len(res.Applied))
		for _, item := range res.Applied {
			location := item.PrimaryPath
			if location == "" {
				location = "(unknown location)"
			}
			fmt.Fprintf(w, "  %s [%s]: %s (%d edits)\n", item.Title, item.ID, location, item.EditCount)
		}
	}

	if len(res.FileChanges) > 0 {
		fmt.Fprintln(w, "Updated files:")
		for _, change := range res.FileChanges {
			fmt.Fprintf(w, "  %s (%d edits)\n", change.Path, change.EditCount)
		}
	}

	if len(res.Skipped) > 0 {
		fmt.Fprintln(w, "Skipped fixes:")
		for _, skip := range res.Skipped {
			id := skip.ID
			if id == "" {
				id = "(unnamed)"
			}
			if skip.Title != "" {
				fmt.Fprintf(w, "  %s [%s]: %s\n", skip.Title, id, skip.Reason)
			} else {
				fmt.Fprintf(w, "  [%s]: %s\n", id, skip.Reason)
			}
		}
	}

	if applyErr != nil {
		if errors.Is(applyErr, fix.ErrNoFixes) && len(res.Applied) == 0 {
			fmt.Fprintln(w, "No applicable fixes found.")
			return nil
		}
		return applyErr
	}
	return nil
}
