package driver

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"refbind/internal/analysis"
	"refbind/internal/diag"
	"refbind/internal/source"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	c, err := OpenDiskCacheAt(filepath.Join(t.TempDir(), "refbind"))
	if err != nil {
		t.Fatal(err)
	}
	key := CacheKey([32]byte{1, 2, 3}, "fp")

	if _, ok, err := c.Get(key); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	in := &Payload{
		Path:   "a.rbu",
		Result: &analysis.Result{Path: "a.rbu", Counts: analysis.Counts{Forbidden: 1}, CodegenBlocked: true},
		Diagnostics: []diag.Diagnostic{
			diag.NewError(diag.SemaBindingForbidden, source.Span{File: 7, Start: 3, End: 9}, "nope").
				WithNote(source.Span{File: 7, Start: 0, End: 1}, "here"),
		},
	}
	if err := c.Put(key, in); err != nil {
		t.Fatal(err)
	}
	out, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	out.rebase(2)
	if got := out.Diagnostics[0].Primary; got != (source.Span{File: 2, Start: 3, End: 9}) {
		t.Errorf("primary = %+v", got)
	}
	if got := out.Diagnostics[0].Notes[0].Span.File; got != 2 {
		t.Errorf("note file = %d", got)
	}
	if diff := cmp.Diff(in.Result.Counts, out.Result.Counts); diff != "" {
		t.Errorf("counts (-want +got):\n%s", diff)
	}

	if CacheKey([32]byte{1, 2, 3}, "other") == key {
		t.Error("fingerprint must change the key")
	}

	if err := c.DropAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(key); ok {
		t.Error("entry survived DropAll")
	}
}
