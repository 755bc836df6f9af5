package fix

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"refbind/internal/analysis"
	"refbind/internal/diag"
	"refbind/internal/source"
	"refbind/internal/unit"
)

const sampleUnit = "push proposed\nbind restricted-mut arg name:W\n"

func loadSample(t *testing.T) (*source.FileSet, source.FileID, string) {
	t.Helper()
	return loadUnit(t, sampleUnit)
}

func loadUnit(t *testing.T, content string) (*source.FileSet, source.FileID, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.rbu")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	fs := source.NewFileSetWithBase(dir)
	id, err := fs.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return fs, id, path
}

func span(id source.FileID, start, end uint32) source.Span {
	return source.Span{File: id, Start: start, End: end}
}

// sampleDiagnostics: a form replacement on line 2 and a pop appended for
// the push on line 1.
func sampleDiagnostics(id source.FileID) []diag.Diagnostic {
	formStart := uint32(len("push proposed\nbind "))
	formEnd := formStart + uint32(len("restricted-mut"))
	eof := uint32(len(sampleUnit))
	return []diag.Diagnostic{
		diag.NewError(diag.SemaBindingForbidden, span(id, 14, 43), "cannot bind").
			WithFix("use a persistent-const reference", diag.FixEdit{Span: span(id, formStart, formEnd), NewText: "persistent-const"}),
		diag.NewError(diag.SemaUnbalancedStack, span(id, 0, 13), "never popped").
			WithFix("add a matching pop", diag.FixEdit{Span: span(id, eof, eof), NewText: "pop\n"}),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestApplyAll(t *testing.T) {
	fs, id, path := loadSample(t)
	res, err := Apply(fs, sampleDiagnostics(id), ApplyOptions{Mode: ApplyModeAll})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("applied = %+v, skipped = %+v", res.Applied, res.Skipped)
	}
	want := "push proposed\nbind persistent-const arg name:W\npop\n"
	if diff := cmp.Diff(want, readFile(t, path)); diff != "" {
		t.Errorf("file (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]FileChange{{Path: "a.rbu", EditCount: 2, Content: []byte(want)}}, res.FileChanges); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
}

func TestApplyOncePicksEarliestDiagnostic(t *testing.T) {
	fs, id, path := loadSample(t)
	res, err := Apply(fs, sampleDiagnostics(id), ApplyOptions{Mode: ApplyModeOnce})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied) != 1 || res.Applied[0].Title != "add a matching pop" {
		t.Fatalf("applied = %+v", res.Applied)
	}
	if got := readFile(t, path); got != sampleUnit+"pop\n" {
		t.Errorf("file = %q", got)
	}
}

func TestApplyByID(t *testing.T) {
	fs, id, path := loadSample(t)
	diags := sampleDiagnostics(id)

	res, err := Apply(fs, diags, ApplyOptions{Mode: ApplyModeID, TargetID: "SEM9999-0-0-0"})
	if !errors.Is(err, ErrNoFixes) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "fix id not found" {
		t.Errorf("skipped = %+v", res.Skipped)
	}

	target := FixID(diags[0], 0)
	res, err = Apply(fs, diags, ApplyOptions{Mode: ApplyModeID, TargetID: target})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied) != 1 || res.Applied[0].ID != target {
		t.Fatalf("applied = %+v", res.Applied)
	}
	if got := readFile(t, path); !strings.Contains(got, "bind persistent-const arg") || strings.Contains(got, "pop") {
		t.Errorf("file = %q", got)
	}
}

func TestAdviceOnlyFixesAreSkipped(t *testing.T) {
	fs, id, _ := loadSample(t)
	diags := []diag.Diagnostic{
		diag.NewError(diag.SemaBindingForbidden, span(id, 14, 43), "cannot bind").
			WithFix("use a conditional-lifetime declarator"),
	}
	res, err := Apply(fs, diags, ApplyOptions{Mode: ApplyModeAll})
	if !errors.Is(err, ErrNoFixes) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "fix has no edits" {
		t.Errorf("skipped = %+v", res.Skipped)
	}
}

func TestDuplicateFixIDs(t *testing.T) {
	fs, id, _ := loadSample(t)
	d := sampleDiagnostics(id)[1]
	res, err := Apply(fs, []diag.Diagnostic{d, d}, ApplyOptions{Mode: ApplyModeAll, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied) != 1 || len(res.Skipped) != 1 || res.Skipped[0].Reason != "duplicate fix id" {
		t.Errorf("applied = %+v, skipped = %+v", res.Applied, res.Skipped)
	}
}

func TestConflictingEditsAreSkipped(t *testing.T) {
	fs, id, _ := loadSample(t)
	formStart := uint32(len("push proposed\nbind "))
	formEnd := formStart + uint32(len("restricted-mut"))
	diags := []diag.Diagnostic{
		diag.NewError(diag.SemaBindingForbidden, span(id, 14, 43), "first").
			WithFix("one", diag.FixEdit{Span: span(id, formStart, formEnd), NewText: "persistent-const"}),
		diag.NewError(diag.SemaBindingForbidden, span(id, 15, 43), "second").
			WithFix("two", diag.FixEdit{Span: span(id, formStart+2, formEnd), NewText: "x"}),
	}
	res, err := Apply(fs, diags, ApplyOptions{Mode: ApplyModeAll, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied) != 1 || len(res.Skipped) != 1 {
		t.Fatalf("applied = %+v, skipped = %+v", res.Applied, res.Skipped)
	}
	if !strings.HasPrefix(res.Skipped[0].Reason, "conflicts with previously applied edits") {
		t.Errorf("reason = %q", res.Skipped[0].Reason)
	}
}

func TestDryRunLeavesFile(t *testing.T) {
	fs, id, path := loadSample(t)
	res, err := Apply(fs, sampleDiagnostics(id), ApplyOptions{Mode: ApplyModeAll, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, path); got != sampleUnit {
		t.Errorf("dry run wrote the file: %q", got)
	}
	if len(res.FileChanges) != 1 || !strings.HasSuffix(string(res.FileChanges[0].Content), "pop\n") {
		t.Errorf("changes = %+v", res.FileChanges)
	}
}

func TestSpansConflict(t *testing.T) {
	edit := func(s, e uint32) diag.FixEdit { return diag.FixEdit{Span: source.Span{Start: s, End: e}} }
	tests := []struct {
		name string
		a, b diag.FixEdit
		want bool
	}{
		{"two insertions", edit(3, 3), edit(3, 3), false},
		{"insertion inside", edit(4, 4), edit(2, 6), true},
		{"insertion at end", edit(6, 6), edit(2, 6), false},
		{"overlap", edit(0, 4), edit(3, 8), true},
		{"adjacent", edit(0, 3), edit(3, 8), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := spansConflict(tc.a, tc.b); got != tc.want {
				t.Errorf("spansConflict = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnalysisFixesApply(t *testing.T) {
	fs, id, path := loadUnit(t, "push proposed\nbind persistent-mut arg move(name:W):W\n")
	bag := diag.NewBag(100)
	rep := diag.BagReporter{Bag: bag}
	u := unit.Parse(context.Background(), fs, id, rep)
	analysis.Run(context.Background(), u, fs.Get(id), analysis.DefaultOptions(), rep)
	if !bag.HasErrors() {
		t.Fatal("expected a forbidden binding and an open region")
	}

	if _, err := Apply(fs, bag.Items(), ApplyOptions{Mode: ApplyModeAll}); err != nil {
		t.Fatal(err)
	}
	want := "push proposed\nbind restricted-mut arg move(name:W):W\npop\n"
	if diff := cmp.Diff(want, readFile(t, path)); diff != "" {
		t.Errorf("file (-want +got):\n%s", diff)
	}
}
