package consistency

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"refbind/internal/mode"
	"refbind/internal/source"
)

func TestCheck(t *testing.T) {
	if err := Check(mode.Proposed, mode.Proposed); err != nil {
		t.Fatalf("proposed/proposed: %v", err)
	}
	err := Check(mode.Legacy, mode.Proposed)
	var mm *MismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("expected *MismatchError, got %v", err)
	}
	if mm.Decl != mode.Legacy || mm.Defn != mode.Proposed {
		t.Errorf("got %+v", mm)
	}
	if got, want := err.Error(), "declared under legacy mode but defined under proposed mode"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func span(start uint32) source.Span {
	return source.Span{File: 1, Start: start, End: start + 1}
}

func TestCheckerReportsAtDefinition(t *testing.T) {
	c := NewChecker()
	if m := c.Declare("parse", mode.Legacy, span(10)); m != nil {
		t.Fatalf("declare: %+v", m)
	}
	mms := c.Define("parse", mode.Proposed, span(50))
	if len(mms) != 1 {
		t.Fatalf("mismatches = %+v", mms)
	}
	m := mms[0]
	if m.Defn.Span != span(50) || m.Decl.Span != span(10) {
		t.Errorf("spans: decl %v defn %v", m.Decl.Span, m.Defn.Span)
	}
	if m.Err.Decl != mode.Legacy || m.Err.Defn != mode.Proposed {
		t.Errorf("err = %+v", m.Err)
	}

	// checked once per function
	if m := c.Define("parse", mode.Legacy, span(90)); len(m) != 0 {
		t.Errorf("second definition re-checked: %+v", m)
	}
}

func TestCheckerDeclarationAfterDefinition(t *testing.T) {
	c := NewChecker()
	if m := c.Define("emit", mode.Proposed, span(5)); len(m) != 0 {
		t.Fatalf("define alone: %+v", m)
	}
	m := c.Declare("emit", mode.Legacy, span(20))
	if m == nil || m.Defn.Span != span(5) {
		t.Fatalf("got %+v", m)
	}
}

func TestCheckerMatchingModes(t *testing.T) {
	c := NewChecker()
	c.Declare("f", mode.Proposed, span(1))
	if m := c.Define("f", mode.Proposed, span(2)); len(m) != 0 {
		t.Fatalf("unexpected mismatch: %+v", m)
	}
}

func TestCheckerComparesEveryDeclaration(t *testing.T) {
	c := NewChecker()
	c.Declare("g", mode.Proposed, span(1))
	c.Declare("g", mode.Legacy, span(3))
	mms := c.Define("g", mode.Proposed, span(5))
	if len(mms) != 1 || mms[0].Decl.Span != span(3) {
		t.Fatalf("mismatches = %+v", mms)
	}

	// a redeclaration after the definition is compared too
	m := c.Declare("g", mode.Legacy, span(7))
	if m == nil || m.Decl.Span != span(7) || m.Defn.Span != span(5) {
		t.Fatalf("late redeclaration: %+v", m)
	}
	if c.Declare("g", mode.Proposed, span(9)) != nil {
		t.Error("matching redeclaration reported")
	}
	if n := len(c.Records()); n != 5 {
		t.Errorf("records = %d, want 5", n)
	}
}

func TestCheckerNormalizesNames(t *testing.T) {
	c := NewChecker()
	// precomposed vs e + combining acute
	c.Declare("caf\u00e9", mode.Legacy, span(1))
	if m := c.Define(" cafe\u0301 ", mode.Proposed, span(2)); len(m) != 1 {
		t.Fatal("normalized names must share a record")
	}

	want := []Record{
		{Func: "caf\u00e9", Mode: mode.Legacy, Span: span(1), Role: RoleDeclaration},
		{Func: "caf\u00e9", Mode: mode.Proposed, Span: span(2), Role: RoleDefinition},
	}
	if diff := cmp.Diff(want, c.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}
