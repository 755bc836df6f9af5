package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"refbind/internal/diag"
	"refbind/internal/diagfmt"
	"refbind/internal/driver"
	"refbind/internal/observ"
	"refbind/internal/source"
	"refbind/internal/version"
)

// outputOptions collects the rendering flags shared by check and watch.
type outputOptions struct {
	format    string
	color     bool
	quiet     bool
	withNotes bool
	suggest   bool
	preview   bool
	pathMode  diagfmt.PathMode
	timer     *observ.Timer
	args      []string
}

func readFormat(value string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(value))
	switch f {
	case "pretty", "short", "json", "sarif":
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (expected pretty|short|json|sarif)", value)
}

// unitsBag merges every unit bag in path order.
func unitsBag(res *driver.CheckResult) *diag.Bag {
	bag := diag.NewBag(0)
	for _, u := range res.Units {
		bag.Merge(u.Bag)
	}
	return bag
}

func summaryOf(res *driver.CheckResult) *diagfmt.SummaryJSON {
	c := res.Counts()
	return &diagfmt.SummaryJSON{
		Units:        len(res.Units),
		Allowed:      c.Allowed,
		ViaTemporary: c.ViaTemporary,
		Forbidden:    c.Forbidden,
		Codegen:      res.CodegenBlocked(),
	}
}

// renderCheck prints res in the requested format. Run-level diagnostics
// (timings) carry no source location and are rendered without a FileSet.
func renderCheck(w io.Writer, res *driver.CheckResult, opts outputOptions) error {
	switch opts.format {
	case "pretty":
		popts := diagfmt.PrettyOpts{
			Color:       opts.color,
			Context:     1,
			PathMode:    opts.pathMode,
			ShowNotes:   opts.withNotes,
			ShowFixes:   opts.suggest,
			ShowPreview: opts.preview,
		}
		for _, u := range res.Units {
			diagfmt.Pretty(w, u.Bag, res.FileSet, popts)
		}
		if res.Extra != nil {
			diagfmt.Pretty(w, res.Extra, nil, popts)
		}
		if !opts.quiet {
			fmt.Fprintln(w, summaryLine(res))
		}
		return nil

	case "short":
		if err := diagfmt.Short(w, unitsBag(res), res.FileSet, opts.withNotes); err != nil {
			return err
		}
		printTimings(opts.timer)
		return nil

	case "json":
		jopts := diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         opts.pathMode,
			IncludeNotes:     opts.withNotes,
			IncludeFixes:     opts.suggest,
			IncludePreviews:  opts.preview,
		}
		out := diagfmt.BuildDiagnosticsOutput(unitsBag(res), res.FileSet, jopts)
		if res.Extra != nil {
			extra := diagfmt.BuildDiagnosticsOutput(res.Extra, nil, jopts)
			out.Diagnostics = append(out.Diagnostics, extra.Diagnostics...)
			out.Count = len(out.Diagnostics)
		}
		out.Summary = summaryOf(res)
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	case "sarif":
		if err := diagfmt.Sarif(w, unitsBag(res), res.FileSet, diagfmt.SarifRunMeta{
			ToolName:       "refbind",
			ToolVersion:    version.Version,
			InvocationArgs: opts.args,
		}); err != nil {
			return err
		}
		printTimings(opts.timer)
		return nil
	}
	return fmt.Errorf("unknown format %q", opts.format)
}

func summaryLine(res *driver.CheckResult) string {
	c := res.Counts()
	line := fmt.Sprintf("checked %d unit(s): %d allowed, %d via temporary, %d forbidden",
		len(res.Units), c.Allowed, c.ViaTemporary, c.Forbidden)
	cached := 0
	for _, u := range res.Units {
		if u.Cached {
			cached++
		}
	}
	if cached > 0 {
		line += fmt.Sprintf(" (%d cached)", cached)
	}
	if res.CodegenBlocked() {
		line += "; code generation blocked"
	}
	return line
}

// printTimings writes the phase summary to stderr so machine-readable
// stdout stays intact.
func printTimings(t *observ.Timer) {
	if t == nil {
		return
	}
	fmt.Fprint(os.Stderr, t.Summary())
}

// renderConfigError reports a broken refbind.toml as a CFG diagnostic
// pointing at the file.
func renderConfigError(w io.Writer, cfgErr *configError, opts outputOptions) error {
	fs := source.NewFileSet()
	id, err := fs.Load(cfgErr.path)
	if err != nil {
		id = fs.AddVirtual(cfgErr.path, nil)
	}
	bag := diag.NewBag(1)
	bag.Add(diag.NewError(cfgErr.code, source.Span{File: id}, cfgErr.msg))

	res := &driver.CheckResult{FileSet: fs, Units: []driver.UnitResult{{Path: cfgErr.path, FileID: id, Bag: bag}}}
	opts.quiet = true
	opts.timer = nil
	return renderCheck(w, res, opts)
}
