// Package config loads refbind.toml, found by walking up from the target
// directory, and turns it into analysis options.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"refbind/internal/analysis"
	"refbind/internal/deduce"
	"refbind/internal/diag"
)

// FileName is the configuration file looked up by Find.
const FileName = "refbind.toml"

// RulesetVersion versions the decision tables. A change to any verdict
// bumps the minor version; a change to the unit script grammar bumps major.
const RulesetVersion = "1.2.0"

type fileConfig struct {
	Deduction   deductionConfig   `toml:"deduction"`
	Diagnostics diagnosticsConfig `toml:"diagnostics"`
	Ruleset     rulesetConfig     `toml:"ruleset"`
	Check       checkConfig       `toml:"check"`
}

type deductionConfig struct {
	Policy string `toml:"policy"`
}

type diagnosticsConfig struct {
	Max                   int    `toml:"max"`
	FileRegion            string `toml:"file_region"`
	ExplicitRegion        string `toml:"explicit_region"`
	Explain               bool   `toml:"explain"`
	FlagRemovalCandidates bool   `toml:"flag_removal_candidates"`
}

type rulesetConfig struct {
	Requires string `toml:"requires"`
}

type checkConfig struct {
	Jobs int `toml:"jobs"`
}

// Config is the effective configuration.
type Config struct {
	// Path is the loaded file, empty for defaults.
	Path    string
	Root    string
	Options analysis.Options
	// PolicySet records an explicit [deduction].policy; it then overrides
	// policy statements in units.
	PolicySet      bool
	MaxDiagnostics int
	Jobs           int
	Requires       string
}

// Error is a configuration problem with its diagnostic code.
type Error struct {
	Code diag.Code
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Default returns the configuration used without a refbind.toml.
func Default() *Config {
	return &Config{
		Options:        analysis.DefaultOptions(),
		MaxDiagnostics: 100,
	}
}

// Find walks up from startDir to locate refbind.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the refbind.toml governing target, or Default when none exists.
func Discover(target string) (*Config, error) {
	path, ok, err := Find(target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes path and validates every field.
func Load(path string) (*Config, error) {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, &Error{Code: diag.CfgParseError, Path: path, Err: fmt.Errorf("failed to parse TOML: %w", err)}
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, &Error{Code: diag.CfgParseError, Path: path, Err: fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))}
	}

	cfg := Default()
	cfg.Path = path
	cfg.Root = filepath.Dir(path)

	if meta.IsDefined("deduction", "policy") {
		p, err := deduce.ParsePolicy(fc.Deduction.Policy)
		if err != nil {
			return nil, &Error{Code: diag.CfgUnknownPolicy, Path: path, Err: err}
		}
		cfg.Options.Policy = p
		cfg.PolicySet = true
	}

	if meta.IsDefined("diagnostics", "file_region") {
		sev, err := diag.ParseSeverity(fc.Diagnostics.FileRegion)
		if err != nil {
			return nil, &Error{Code: diag.CfgUnknownSeverity, Path: path, Err: fmt.Errorf("[diagnostics].file_region: %w", err)}
		}
		cfg.Options.FileRegionSeverity = sev
	}
	if meta.IsDefined("diagnostics", "explicit_region") {
		sev, err := diag.ParseSeverity(fc.Diagnostics.ExplicitRegion)
		if err != nil {
			return nil, &Error{Code: diag.CfgUnknownSeverity, Path: path, Err: fmt.Errorf("[diagnostics].explicit_region: %w", err)}
		}
		cfg.Options.ExplicitRegionSeverity = sev
	}
	if fc.Diagnostics.Max > 0 {
		cfg.MaxDiagnostics = fc.Diagnostics.Max
	}
	cfg.Options.Explain = fc.Diagnostics.Explain
	cfg.Options.FlagRemovalCandidates = fc.Diagnostics.FlagRemovalCandidates

	if fc.Check.Jobs > 0 {
		cfg.Jobs = fc.Check.Jobs
	}

	if req := strings.TrimSpace(fc.Ruleset.Requires); req != "" {
		if err := CheckRuleset(req); err != nil {
			code := diag.CfgRulesetMismatch
			var se *SyntaxError
			if errors.As(err, &se) {
				code = diag.CfgBadRulesetSyntax
			}
			return nil, &Error{Code: code, Path: path, Err: err}
		}
		cfg.Requires = req
	}
	return cfg, nil
}

// SyntaxError is a malformed [ruleset].requires constraint.
type SyntaxError struct {
	Constraint string
	Err        error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid ruleset constraint %q: %v", e.Constraint, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// CheckRuleset verifies that RulesetVersion satisfies constraint.
func CheckRuleset(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return &SyntaxError{Constraint: constraint, Err: err}
	}
	v := semver.MustParse(RulesetVersion)
	if ok, errs := c.Validate(v); !ok {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("ruleset %s does not satisfy %q: %s", RulesetVersion, constraint, strings.Join(msgs, "; "))
	}
	return nil
}

// Fingerprint identifies everything that changes analysis output; the
// driver's disk cache keys results by it.
func (c *Config) Fingerprint() string {
	o := c.Effective()
	s := fmt.Sprintf("ruleset=%s policy=%s force=%t file=%s explicit=%s explain=%t removal=%t invariants=%t",
		RulesetVersion, o.Policy, o.ForcePolicy, o.FileRegionSeverity, o.ExplicitRegionSeverity,
		o.Explain, o.FlagRemovalCandidates, o.CheckInvariants)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// Effective returns the analysis options, with PolicySet turned into ForcePolicy.
func (c *Config) Effective() analysis.Options {
	o := c.Options
	if c.PolicySet {
		o.ForcePolicy = true
	}
	return o
}
