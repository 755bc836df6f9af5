package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"refbind/internal/diag"
	"refbind/internal/source"
)

// palette renders styled fragments, or plain text when colors are off.
type palette struct {
	on bool
}

func (p palette) paint(s string, attrs ...color.Attribute) string {
	if !p.on || s == "" {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func (p palette) severity(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return p.paint(sev.String(), color.FgRed, color.Bold)
	case diag.SevWarning:
		return p.paint(sev.String(), color.FgYellow, color.Bold)
	}
	return p.paint(sev.String(), color.FgCyan, color.Bold)
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes с аналогичным форматом.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := palette{on: opts.Color}
	for _, d := range bag.Items() {
		prettyOne(w, d, fs, opts, p)
	}
}

func prettyOne(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, p palette) {
	header := fmt.Sprintf("%s %s: %s", p.severity(d.Severity), p.paint(d.Code.ID(), color.Bold), d.Message)
	if loc := location(fs, d.Primary, opts.PathMode); loc != "" {
		header = p.paint(loc, color.Bold) + ": " + header
	}
	fmt.Fprintln(w, header)

	if validSpan(fs, d.Primary) {
		writeSnippet(w, fs, d.Primary, opts, p)
	}

	if opts.ShowNotes || d.Code == diag.ObsTimings {
		for _, n := range d.Notes {
			loc := location(fs, n.Span, opts.PathMode)
			if loc == "" {
				fmt.Fprintf(w, "  %s %s\n", p.paint("note:", color.FgBlue, color.Bold), n.Msg)
				continue
			}
			fmt.Fprintf(w, "  %s %s: %s\n", p.paint("note:", color.FgBlue, color.Bold), loc, n.Msg)
		}
	}

	if !opts.ShowFixes {
		return
	}
	for i, fix := range d.Fixes {
		fmt.Fprintf(w, "  %s %s\n", p.paint(fmt.Sprintf("fix #%d:", i+1), color.FgGreen, color.Bold), fix.Title)
		for _, edit := range fix.Edits {
			action := "apply=" + strconv.Quote(edit.NewText)
			if edit.NewText == "" {
				action = "delete"
			}
			fmt.Fprintf(w, "    edit %s %s\n", location(fs, edit.Span, opts.PathMode), action)
			if !opts.ShowPreview {
				continue
			}
			preview, err := buildFixEditPreview(fs, edit)
			if err != nil {
				continue
			}
			fmt.Fprintln(w, "    preview:")
			for _, line := range preview.before {
				fmt.Fprintf(w, "      %s\n", p.paint("- "+line, color.FgRed))
			}
			for _, line := range preview.after {
				fmt.Fprintf(w, "      %s\n", p.paint("+ "+line, color.FgGreen))
			}
		}
	}
}

// location is path:line:col, or "" for spans outside fs.
func location(fs *source.FileSet, sp source.Span, mode PathMode) string {
	if !validSpan(fs, sp) {
		return ""
	}
	f := fs.Get(sp.File)
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(fs, f, mode), start.Line, start.Col)
}

func writeSnippet(w io.Writer, fs *source.FileSet, sp source.Span, opts PrettyOpts, p palette) {
	f := fs.Get(sp.File)
	if len(f.Content) == 0 {
		return
	}
	start, end := fs.Resolve(sp)
	ctx := uint32(max(opts.Context, 0))

	first := uint32(1)
	if start.Line > ctx {
		first = start.Line - ctx
	}
	last := start.Line + ctx
	if total := uint32(len(f.LineIdx)) + 1; last > total {
		last = total
	}
	gutter := len(strconv.FormatUint(uint64(last), 10))

	for ln := first; ln <= last; ln++ {
		text := f.Line(ln)
		if ln != start.Line && strings.TrimSpace(text) == "" {
			continue
		}
		if opts.Width > 0 {
			text = runewidth.Truncate(text, int(opts.Width), "…")
		}
		num := fmt.Sprintf("%*d", gutter, ln)
		fmt.Fprintf(w, " %s %s %s\n", p.paint(num, color.FgBlue), p.paint("|", color.FgBlue), text)
		if ln != start.Line {
			continue
		}
		fmt.Fprintf(w, " %s %s %s\n", strings.Repeat(" ", gutter), p.paint("|", color.FgBlue),
			p.paint(underline(f.Line(ln), start, end), color.FgRed, color.Bold))
	}
}

// underline marks the span on its first line; multi-line spans run to
// the end of that line.
func underline(text string, start, end source.LineCol) string {
	from := min(max(int(start.Col)-1, 0), len(text))
	to := len(text)
	if end.Line == start.Line {
		to = min(int(end.Col)-1, len(text))
	}
	pad := runewidth.StringWidth(text[:from])
	width := 1
	if to > from {
		width = max(runewidth.StringWidth(text[from:to]), 1)
	}
	return strings.Repeat(" ", pad) + "^" + strings.Repeat("~", width-1)
}
