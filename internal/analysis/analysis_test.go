package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"refbind/internal/binding"
	"refbind/internal/deduce"
	"refbind/internal/diag"
	"refbind/internal/source"
	"refbind/internal/unit"
	"refbind/internal/valuecat"
)

func run(t *testing.T, src string, opts Options) (*Result, *diag.Bag, *source.FileSet) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("a.rbu", []byte(src))
	bag := diag.NewBag(100)
	r := diag.BagReporter{Bag: bag}
	u := unit.Parse(context.Background(), fs, id, r)
	res := Run(context.Background(), u, fs.Get(id), opts, r)
	return res, bag, fs
}

func codes(bag *diag.Bag) []string {
	var out []string
	for _, d := range bag.Items() {
		out = append(out, diag.SeverityLabel(d.Severity)+" "+d.Code.ID())
	}
	return out
}

func TestExplicitPushWithoutPop(t *testing.T) {
	res, bag, fs := run(t, "push proposed\nbind persistent-const var temp:Widget\n", DefaultOptions())

	want := "error SEM3003 a.rbu:1:1 explicit region pushing proposed mode is never popped at end of a.rbu\n" +
		"error SEM3001 a.rbu:2:1 cannot bind persistent-const to materializing expression of type Widget (var context, proposed mode): temporary would not outlive the variable"
	if got := diag.FormatGoldenDiagnostics(bag.Items(), fs, false); got != want {
		t.Fatalf("diagnostics:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
	if !res.CodegenBlocked {
		t.Error("explicit imbalance must block code generation")
	}
	if len(res.Unbalanced) != 1 {
		t.Errorf("unbalanced = %+v", res.Unbalanced)
	}
	for _, d := range bag.Items() {
		if d.Code == diag.SemaBindingForbidden {
			if len(d.Fixes) != 1 || d.Fixes[0].Title != "use a conditional-lifetime declarator" {
				t.Errorf("fixes = %+v", d.Fixes)
			}
		}
	}
}

func TestFileRegionIsWarning(t *testing.T) {
	res, bag, _ := run(t, "push proposed file\nbind restricted-flex arg temp:W\n", DefaultOptions())
	if diff := cmp.Diff([]string{"warning SEM3003"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	if res.CodegenBlocked {
		t.Error("file region warning must not block code generation")
	}
	if res.Counts != (Counts{Allowed: 1}) {
		t.Errorf("counts = %+v", res.Counts)
	}
}

func TestRegionSeverityIsConfigurable(t *testing.T) {
	opts := DefaultOptions()
	opts.ExplicitRegionSeverity = diag.SevWarning
	res, bag, _ := run(t, "push legacy\n", opts)
	if diff := cmp.Diff([]string{"warning SEM3003"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	if res.CodegenBlocked {
		t.Error("warning must not block code generation")
	}
}

func TestRestrictedMutableCopiesPersistentArgument(t *testing.T) {
	res, bag, _ := run(t, "push proposed\nbind restricted-mut arg name:Widget scope=7\npop\n", DefaultOptions())
	if bag.Len() != 0 {
		t.Fatalf("diagnostics: %v", codes(bag))
	}
	want := binding.Verdict{Kind: binding.AllowedViaTemporary, Owner: binding.OwnerCallFrame, Scope: 7}
	if len(res.Sites) != 1 || res.Sites[0].Verdict != want {
		t.Fatalf("sites = %+v", res.Sites)
	}
}

func TestPopOnEmptyRevertsToLegacy(t *testing.T) {
	res, bag, fs := run(t, "pop\nbind restricted-mut arg name:W\n", DefaultOptions())
	want := "error SEM3003 a.rbu:1:1 pop without matching push; mode reverts to legacy\n" +
		"error SEM3001 a.rbu:2:1 cannot bind restricted-mut to persistent expression of type W (arg context, legacy mode): value category cannot bind to this form"
	if got := diag.FormatGoldenDiagnostics(bag.Items(), fs, false); got != want {
		t.Fatalf("diagnostics:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
	if !res.CodegenBlocked || res.Aborted {
		t.Errorf("blocked=%v aborted=%v", res.CodegenBlocked, res.Aborted)
	}
}

func TestModeMismatch(t *testing.T) {
	src := "declare render\npush proposed\ndefine render\npop\n"
	res, bag, fs := run(t, src, DefaultOptions())
	want := "note SEM3002 a.rbu:1:1 declaration analyzed under legacy mode\n" +
		"error SEM3002 a.rbu:3:1 render: declared under legacy mode but defined under proposed mode"
	if got := diag.FormatGoldenDiagnostics(bag.Items(), fs, true); got != want {
		t.Fatalf("diagnostics:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
	if !res.CodegenBlocked {
		t.Error("mode mismatch must block code generation")
	}
	if len(res.Records) != 2 {
		t.Errorf("records = %+v", res.Records)
	}

	_, bag, _ = run(t, "push proposed\ndeclare render\ndefine render\npop\n", DefaultOptions())
	if bag.Len() != 0 {
		t.Errorf("same-mode pair reported: %v", codes(bag))
	}
}

func TestCallPrefersDirectBinding(t *testing.T) {
	res, bag, _ := run(t, "push proposed\ncall sink restricted-mut,persistent-const name:W\npop\n", DefaultOptions())
	if diff := cmp.Diff([]string{"info SEM3004"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	if len(res.Sites) != 1 || res.Sites[0].Form != binding.PersistentImmutable || res.Sites[0].Verdict.Kind != binding.Allowed {
		t.Fatalf("sites = %+v", res.Sites)
	}
	if len(bag.Items()[0].Notes) != 1 {
		t.Errorf("notes = %+v", bag.Items()[0].Notes)
	}
}

func TestCallWithoutViableCandidate(t *testing.T) {
	res, bag, _ := run(t, "push proposed\ncall sink persistent-mut,persistent-const temp:W\npop\n", DefaultOptions())
	if diff := cmp.Diff([]string{"error SEM3008"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	if res.Counts.Forbidden != 1 {
		t.Errorf("counts = %+v", res.Counts)
	}
}

func TestCallWithoutSuggestionHasNoFix(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("a.rbu", []byte("call sink persistent-mut temp:W\n"))
	bag := diag.NewBag(100)
	r := diag.BagReporter{Bag: bag}
	u := unit.Parse(context.Background(), fs, id, r)
	// a form the resolver cannot place yields a verdict without a suggestion
	u.Stmts[0].Forms = []binding.Form{binding.FormInvalid}
	Run(context.Background(), u, fs.Get(id), DefaultOptions(), r)

	if diff := cmp.Diff([]string{"error SEM3008"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	if fixes := bag.Items()[0].Fixes; len(fixes) != 0 {
		t.Errorf("fixes = %+v", fixes)
	}
}

func TestPolicySelection(t *testing.T) {
	src := "policy split\npush proposed\ndeduce deduced-expiring arg name:W\npop\n"

	res, _, _ := run(t, src, DefaultOptions())
	if res.Policy != deduce.SplitPolicy {
		t.Fatalf("policy = %v", res.Policy)
	}
	if s := res.Sites[0]; s.Verdict.Kind != binding.AllowedViaTemporary || s.Deduced != "W&&" {
		t.Errorf("split site = %+v", s)
	}

	opts := DefaultOptions()
	opts.ForcePolicy = true
	res, _, _ = run(t, src, opts)
	if res.Policy != deduce.UniversalPolicy {
		t.Fatalf("forced policy = %v", res.Policy)
	}
	if s := res.Sites[0]; s.Verdict.Kind != binding.Allowed || s.Deduced != "W&" {
		t.Errorf("universal site = %+v", s)
	}
}

func TestAutoRejectsImplicitCopy(t *testing.T) {
	_, bag, _ := run(t, "push proposed\ndeduce auto-universal cond temp:W const\npop\n", DefaultOptions())
	if diff := cmp.Diff([]string{"error SEM3005"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	d := bag.Items()[0]
	if len(d.Fixes) != 1 || d.Fixes[0].Title != "declare an owned value" {
		t.Errorf("fixes = %+v", d.Fixes)
	}
}

func TestConditionalDeclarator(t *testing.T) {
	opts := DefaultOptions()
	opts.Explain = true
	res, bag, _ := run(t, "push proposed\ncond prefer-ref _ = temp:W\ncond prefer-ref _ = name:W\npop\n", opts)
	if diff := cmp.Diff([]string{"info SEM3007", "info SEM3007"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	got := []string{res.Sites[0].Effective, res.Sites[1].Effective}
	want := []string{"owned W (in-place construction)", "reference W const (persistent-const)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("effective (-want +got):\n%s", diff)
	}
}

func TestForwardChain(t *testing.T) {
	opts := DefaultOptions()
	opts.Explain = true
	res, bag, _ := run(t, "push proposed\nforward 3 name:W\npop\n", opts)
	if diff := cmp.Diff([]string{"info SEM3000"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	if res.Counts != (Counts{Allowed: 2, ViaTemporary: 1}) {
		t.Errorf("counts = %+v", res.Counts)
	}
	if msg := bag.Items()[0].Message; msg != "forwarded through 3 frames: 1 construction(s), 2 move(s)" {
		t.Errorf("message = %q", msg)
	}

	_, bag, _ = run(t, "forward 2 name:W\n", DefaultOptions())
	if diff := cmp.Diff([]string{"error SEM3001"}, codes(bag)); diff != "" {
		t.Fatalf("legacy forward codes (-want +got):\n%s", diff)
	}
}

func TestLegacyCaptureCopiesPersistent(t *testing.T) {
	res, bag, _ := run(t, "deduce deduced-capture arg name:Widget\n", DefaultOptions())
	if bag.Len() != 0 {
		t.Fatalf("diagnostics = %+v", bag.Items())
	}
	if res.Counts != (Counts{ViaTemporary: 1}) {
		t.Errorf("counts = %+v", res.Counts)
	}
}

func TestForwardDepthLimit(t *testing.T) {
	res, bag, _ := run(t, "push proposed\nforward 9223372036854775807 name:W\npop\n", DefaultOptions())
	if diff := cmp.Diff([]string{"error SYN2002"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	if res.Counts.Total() != 0 {
		t.Errorf("counts = %+v", res.Counts)
	}

	res, bag, _ = run(t, "push proposed\nforward 1024 name:W scope=4294967295\npop\n", DefaultOptions())
	if bag.HasErrors() {
		t.Fatalf("diagnostics = %+v", bag.Items())
	}
	if res.Counts.Total() != 1024 {
		t.Errorf("counts = %+v", res.Counts)
	}
}

func TestForwardFramesSaturate(t *testing.T) {
	tests := []struct {
		base  valuecat.ScopeID
		depth int
		want  []valuecat.ScopeID
	}{
		{base: 3, depth: 3, want: []valuecat.ScopeID{3, 4, 5}},
		{base: math.MaxUint32 - 1, depth: 3, want: []valuecat.ScopeID{math.MaxUint32 - 1, math.MaxUint32, math.MaxUint32}},
		{base: 0, depth: 0, want: []valuecat.ScopeID{}},
		{base: 0, depth: -1, want: []valuecat.ScopeID{}},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(tc.want, forwardFrames(tc.base, tc.depth)); diff != "" {
			t.Errorf("forwardFrames(%d, %d) (-want +got):\n%s", tc.base, tc.depth, diff)
		}
	}
	if n := len(forwardFrames(0, math.MaxInt)); n != unit.MaxForwardDepth {
		t.Errorf("len = %d, want %d", n, unit.MaxForwardDepth)
	}
}

func TestRemovalCandidateFlag(t *testing.T) {
	opts := DefaultOptions()
	opts.FlagRemovalCandidates = true
	_, bag, _ := run(t, "push proposed\nbind restricted-flex var name:W\npop\n", opts)
	if diff := cmp.Diff([]string{"info SEM3009"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
}

func TestCancelledContextAborts(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("a.rbu", []byte("push proposed\nbind restricted-flex arg temp:W\n"))
	u := unit.Parse(context.Background(), fs, id, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bag := diag.NewBag(10)
	res := Run(ctx, u, fs.Get(id), DefaultOptions(), diag.BagReporter{Bag: bag})
	if !res.Aborted || len(res.Sites) != 0 || bag.Len() != 0 {
		t.Fatalf("res = %+v, diags = %v", res, codes(bag))
	}
}

func TestInvariantViolationStopsUnit(t *testing.T) {
	fs := source.NewFileSet()
	other := fs.AddVirtual("other.rbu", []byte("x"))
	id := fs.AddVirtual("a.rbu", []byte("bind restricted-flex arg temp:W\n"))
	u := unit.Parse(context.Background(), fs, id, nil)

	bag := diag.NewBag(10)
	res := Run(context.Background(), u, fs.Get(other), DefaultOptions(), diag.BagReporter{Bag: bag})
	if diff := cmp.Diff([]string{"error SEM3006"}, codes(bag)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	if !res.Aborted || len(res.Sites) != 0 {
		t.Fatalf("res = %+v", res)
	}
}

// Analyzing the same unit twice gives the same result.
func TestRunIsDeterministic(t *testing.T) {
	src := "policy universal\npush proposed\nbind restricted-mut arg name:W\ndeduce deduced-capture arg move(name:W):W\ncall f restricted-flex,persistent-mut name:W\npop\n"
	a, _, _ := run(t, src, DefaultOptions())
	b, _, _ := run(t, src, DefaultOptions())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("results differ (-first +second):\n%s", diff)
	}
}
