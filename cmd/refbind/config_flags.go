package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"refbind/internal/config"
	"refbind/internal/deduce"
	"refbind/internal/diag"
)

type configError struct {
	code diag.Code
	path string
	msg  string
}

// loadConfig discovers the refbind.toml governing target and applies the
// command-line overrides on top. A malformed file comes back as a
// configError so it can be rendered like any other diagnostic.
func loadConfig(cmd *cobra.Command, target string) (*config.Config, *configError, error) {
	cfg, err := config.Discover(target)
	if err != nil {
		var ce *config.Error
		if errors.As(err, &ce) {
			return nil, &configError{code: ce.Code, path: ce.Path, msg: ce.Err.Error()}, nil
		}
		return nil, nil, err
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return nil, nil, err
	}
	return cfg, nil, nil
}

// applyOverrides lets explicitly set flags win over the file.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("policy") {
		value, err := flags.GetString("policy")
		if err != nil {
			return fmt.Errorf("failed to get policy flag: %w", err)
		}
		p, err := deduce.ParsePolicy(value)
		if err != nil {
			return err
		}
		cfg.Options.Policy = p
		cfg.PolicySet = true
	}
	if flags.Changed("explain") {
		v, err := flags.GetBool("explain")
		if err != nil {
			return fmt.Errorf("failed to get explain flag: %w", err)
		}
		cfg.Options.Explain = v
	}
	if flags.Changed("flag-removal") {
		v, err := flags.GetBool("flag-removal")
		if err != nil {
			return fmt.Errorf("failed to get flag-removal flag: %w", err)
		}
		cfg.Options.FlagRemovalCandidates = v
	}
	if flags.Changed("jobs") {
		v, err := flags.GetInt("jobs")
		if err != nil {
			return fmt.Errorf("failed to get jobs flag: %w", err)
		}
		cfg.Jobs = v
	}
	if root := cmd.Root().PersistentFlags(); root.Changed("max-diagnostics") {
		v, err := root.GetInt("max-diagnostics")
		if err != nil {
			return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
		}
		cfg.MaxDiagnostics = v
	}
	return nil
}

// addAnalysisFlags registers the flags shared by check and watch.
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "pretty", "output format (pretty|short|json|sarif)")
	cmd.Flags().Int("jobs", 0, "units analyzed in parallel (0 = GOMAXPROCS)")
	cmd.Flags().String("policy", "universal", "deduction policy for forwarding forms (universal|split)")
	cmd.Flags().Bool("disk-cache", false, "reuse results cached under the user cache directory")
	cmd.Flags().Bool("with-notes", false, "include diagnostic notes")
	cmd.Flags().Bool("suggest", false, "show suggested fixes")
	cmd.Flags().Bool("preview", false, "preview suggested fixes (with --suggest)")
	cmd.Flags().Bool("fullpath", false, "print absolute paths")
	cmd.Flags().Bool("explain", false, "report every resolved binding site")
	cmd.Flags().Bool("flag-removal", false, "flag restricted-flex variable bindings")
}
