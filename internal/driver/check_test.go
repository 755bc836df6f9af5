package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"refbind/internal/analysis"
	"refbind/internal/config"
	"refbind/internal/diag"
	"refbind/internal/observ"
	"refbind/internal/source"
	"refbind/internal/unit"
)

func writeUnits(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

var sampleUnits = map[string]string{
	"a.rbu":         "push proposed\nbind persistent-const var temp:Widget\n",
	"b.rbu":         "push proposed file\nbind restricted-flex arg temp:W\n",
	"nested/c.rbu":  "declare f\npush proposed\ndefine f\npop\n",
	"nested/d.txt":  "not a unit\n",
	".hidden/e.rbu": "bind bogus arg temp:W\n",
}

func TestListUnits(t *testing.T) {
	dir := writeUnits(t, sampleUnits)
	got, err := ListUnits(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "a.rbu"),
		filepath.Join(dir, "b.rbu"),
		filepath.Join(dir, "nested", "c.rbu"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("units (-want +got):\n%s", diff)
	}

	single, err := ListUnits(filepath.Join(dir, "nested", "d.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(single) != 1 {
		t.Fatalf("a file target must be returned as is, got %v", single)
	}
}

func TestCheckDirectory(t *testing.T) {
	dir := writeUnits(t, sampleUnits)
	res, err := Check(context.Background(), dir, Options{Jobs: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Units) != 3 {
		t.Fatalf("units = %d", len(res.Units))
	}
	for i := 1; i < len(res.Units); i++ {
		if res.Units[i-1].Path >= res.Units[i].Path {
			t.Fatalf("units not ordered by path: %q before %q", res.Units[i-1].Path, res.Units[i].Path)
		}
	}

	aPath := filepath.Join(dir, "a.rbu")
	want := fmt.Sprintf("error SEM3003 a.rbu:1:1 explicit region pushing proposed mode is never popped at end of %s\n", aPath) +
		"error SEM3001 a.rbu:2:1 cannot bind persistent-const to materializing expression of type Widget (var context, proposed mode): temporary would not outlive the variable"
	if got := diag.FormatGoldenDiagnostics(res.Units[0].Bag.Items(), res.FileSet, false); got != want {
		t.Errorf("a.rbu diagnostics:\nwant:\n%s\n\ngot:\n%s", want, got)
	}

	var codes []string
	for _, d := range res.Diagnostics() {
		codes = append(codes, diag.SeverityLabel(d.Severity)+" "+d.Code.ID())
	}
	wantCodes := []string{"error SEM3003", "error SEM3001", "warning SEM3003", "error SEM3002"}
	if diff := cmp.Diff(wantCodes, codes); diff != "" {
		t.Errorf("codes (-want +got):\n%s", diff)
	}
	if !res.HasErrors() || !res.CodegenBlocked() {
		t.Error("expected errors and blocked code generation")
	}
	if got := res.Counts(); got != (analysis.Counts{Allowed: 1, Forbidden: 1}) {
		t.Errorf("counts = %+v", got)
	}
}

func TestCheckSingleFile(t *testing.T) {
	dir := writeUnits(t, map[string]string{"ok.rbu": "bind persistent-const arg name:W\n"})
	res, err := Check(context.Background(), filepath.Join(dir, "ok.rbu"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Units) != 1 || res.HasErrors() {
		t.Fatalf("unexpected result: %+v", res.Units)
	}
	if res.Units[0].Result.Counts != (analysis.Counts{Allowed: 1}) {
		t.Errorf("counts = %+v", res.Units[0].Result.Counts)
	}
}

func TestCheckLoadError(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gone.rbu")
	res, err := CheckFiles(context.Background(), source.NewFileSetWithBase(dir), []string{missing}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	u := res.Units[0]
	if u.Result != nil {
		t.Error("an unloaded unit has no analysis result")
	}
	if u.Bag.Count(diag.IOLoadFileError) != 1 {
		t.Fatalf("diagnostics = %+v", u.Bag.Items())
	}
	got := diag.FormatGoldenDiagnostics(u.Bag.Items(), res.FileSet, false)
	if !strings.HasPrefix(got, "error IO4001 gone.rbu:1:1 failed to load unit: ") {
		t.Errorf("golden = %q", got)
	}
}

func TestCheckCachedResultsMatch(t *testing.T) {
	dir := writeUnits(t, sampleUnits)
	cache, err := OpenDiskCacheAt(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}

	plain, err := Check(context.Background(), dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	cold, err := Check(context.Background(), dir, Options{Cache: cache})
	if err != nil {
		t.Fatal(err)
	}
	warm, err := Check(context.Background(), dir, Options{Cache: cache})
	if err != nil {
		t.Fatal(err)
	}

	for i, u := range warm.Units {
		if !u.Cached {
			t.Errorf("%s: expected a cache hit", u.Path)
		}
		if cold.Units[i].Cached {
			t.Errorf("%s: unexpected hit on a cold cache", u.Path)
		}
	}

	opts := []cmp.Option{cmpopts.EquateEmpty()}
	if diff := cmp.Diff(plain.Diagnostics(), warm.Diagnostics(), opts...); diff != "" {
		t.Errorf("diagnostics differ with cache (-plain +warm):\n%s", diff)
	}
	for i := range plain.Units {
		if diff := cmp.Diff(plain.Units[i].Result, warm.Units[i].Result, opts...); diff != "" {
			t.Errorf("%s: result differs with cache (-plain +warm):\n%s", plain.Units[i].Path, diff)
		}
	}
}

func TestCheckCacheKeyedByConfig(t *testing.T) {
	dir := writeUnits(t, map[string]string{"a.rbu": "push legacy\n"})
	cache, err := OpenDiskCacheAt(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Check(context.Background(), dir, Options{Cache: cache}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Options.ExplicitRegionSeverity = diag.SevWarning
	res, err := Check(context.Background(), dir, Options{Cache: cache, Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	u := res.Units[0]
	if u.Cached {
		t.Fatal("a different configuration must miss the cache")
	}
	if u.Bag.HasErrors() {
		t.Errorf("explicit region severity override ignored: %+v", u.Bag.Items())
	}
}

func TestCheckCacheKeyedByForcedPolicy(t *testing.T) {
	dir := writeUnits(t, map[string]string{"a.rbu": "policy split\npush proposed\ndeduce deduced-expiring arg name:W\npop\n"})
	cache, err := OpenDiskCacheAt(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	unforced, err := Check(context.Background(), dir, Options{Cache: cache})
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.PolicySet = true
	forced, err := Check(context.Background(), dir, Options{Cache: cache, Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := Check(context.Background(), dir, Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}

	if forced.Units[0].Cached {
		t.Fatal("an explicit policy must miss the cache of an unforced run")
	}
	if diff := cmp.Diff(fresh.Units[0].Result, forced.Units[0].Result, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("forced result (-fresh +forced):\n%s", diff)
	}
	if diff := cmp.Diff(unforced.Units[0].Result.Counts, forced.Units[0].Result.Counts); diff == "" {
		t.Errorf("forcing the universal policy must change the verdict, counts = %+v", forced.Units[0].Result.Counts)
	}
}

func TestCheckCancelled(t *testing.T) {
	dir := writeUnits(t, sampleUnits)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Check(ctx, dir, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCheckProgressAndTimings(t *testing.T) {
	dir := writeUnits(t, sampleUnits)
	var (
		mu     sync.Mutex
		events = map[string][]Status{}
	)
	sink := SinkFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events[filepath.Base(ev.File)] = append(events[filepath.Base(ev.File)], ev.Status)
	})
	res, err := Check(context.Background(), dir, Options{Progress: sink, Timer: observ.NewTimer(), Timings: true})
	if err != nil {
		t.Fatal(err)
	}

	want := []Status{StatusQueued, StatusWorking, StatusWorking, StatusError}
	if diff := cmp.Diff(want, events["a.rbu"]); diff != "" {
		t.Errorf("a.rbu events (-want +got):\n%s", diff)
	}
	if res.Extra == nil || res.Extra.Count(diag.ObsTimings) != 1 {
		t.Fatal("expected one timings diagnostic")
	}
	if n := len(res.Extra.Items()[0].Notes); n != 1 {
		t.Errorf("timings notes = %d", n)
	}
}

func TestCheckContainsUnitPanic(t *testing.T) {
	dir := writeUnits(t, map[string]string{
		"a.rbu":    "bind persistent-const arg name:W\n",
		"boom.rbu": "bind persistent-const arg name:W\n",
	})
	orig := analyzeUnit
	t.Cleanup(func() { analyzeUnit = orig })
	analyzeUnit = func(ctx context.Context, u *unit.Unit, sf *source.File, opts analysis.Options, r diag.Reporter) *analysis.Result {
		if filepath.Base(sf.Path) == "boom.rbu" {
			panic("boom")
		}
		return orig(ctx, u, sf, opts, r)
	}

	res, err := Check(context.Background(), dir, Options{Jobs: 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Units[0].Result == nil || res.Units[0].Bag.HasErrors() {
		t.Errorf("a.rbu must be analyzed normally: %+v", res.Units[0])
	}
	boom := res.Units[1]
	if boom.Result != nil || boom.Bag.Count(diag.SemaInvariantViolation) != 1 {
		t.Fatalf("boom.rbu = %+v", boom.Bag.Items())
	}
	if msg := boom.Bag.Items()[0].Message; msg != "internal error analyzing unit: boom" {
		t.Errorf("message = %q", msg)
	}
}
