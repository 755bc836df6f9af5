package deduce

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"refbind/internal/binding"
	"refbind/internal/mode"
	"refbind/internal/valuecat"
)

func expr(cat valuecat.Category, mutable bool) valuecat.Expr {
	return valuecat.Expr{Category: cat, Mutable: mutable, Type: "Widget"}
}

func argQuery(form binding.Form, e valuecat.Expr) binding.Query {
	return binding.Query{Mode: mode.Proposed, Form: form, Context: binding.ArgumentBinding, Expr: e, Site: 1}
}

func TestUniversalPolicyForwarding(t *testing.T) {
	eng := New(UniversalPolicy)
	tests := []struct {
		name string
		expr valuecat.Expr
		want Type
		kind binding.Kind
	}{
		{"mutable persistent", expr(valuecat.Persistent, true), Type{Base: "Widget", Form: binding.PersistentMutable}, binding.Allowed},
		{"const persistent", expr(valuecat.Persistent, false), Type{Base: "Widget", Const: true, Form: binding.PersistentImmutable}, binding.Allowed},
		{"expiring", expr(valuecat.Expiring, true), Type{Base: "Widget", Form: binding.RestrictedMutable}, binding.Allowed},
		{"const expiring", expr(valuecat.Expiring, false), Type{Base: "Widget", Const: true, Form: binding.RestrictedFlexible}, binding.Allowed},
		{"materializing", expr(valuecat.Materializing, true), Type{Base: "Widget", Form: binding.RestrictedMutable}, binding.Allowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := eng.Deduce(argQuery(binding.DeducedFromExpiring, tc.expr))
			if diff := cmp.Diff(tc.want, res.Type); diff != "" {
				t.Errorf("type mismatch (-want +got):\n%s", diff)
			}
			if res.Verdict.Kind != tc.kind {
				t.Errorf("verdict = %v, want %v", res.Verdict, tc.kind)
			}
			if res.Policy != UniversalPolicy {
				t.Errorf("policy = %v", res.Policy)
			}
		})
	}
}

func TestSplitPolicyCopiesPersistentSources(t *testing.T) {
	eng := New(SplitPolicy)
	res := eng.Deduce(argQuery(binding.DeducedFromExpiring, expr(valuecat.Persistent, true)))
	if res.Type != (Type{Base: "Widget", Form: binding.RestrictedMutable}) {
		t.Fatalf("type = %+v", res.Type)
	}
	want := binding.Verdict{Kind: binding.AllowedViaTemporary, Owner: binding.OwnerCallFrame, Scope: 1}
	if res.Verdict != want {
		t.Fatalf("verdict = %v, want %v", res.Verdict, want)
	}

	res = eng.Deduce(argQuery(binding.DeducedFromExpiring, expr(valuecat.Materializing, true)))
	if res.Verdict.Kind != binding.Allowed {
		t.Fatalf("materializing under split: %v", res.Verdict)
	}
}

// Deduction never invents verdicts: the result equals resolving the
// concrete form directly.
func TestDeduceDelegatesToResolver(t *testing.T) {
	for _, p := range []Policy{UniversalPolicy, SplitPolicy} {
		eng := New(p)
		for _, f := range []binding.Form{binding.DeducedFromExpiring, binding.DeducedPersistentImmutable, binding.DeducedPersistentMutable} {
			for _, cat := range valuecat.Categories {
				for _, mut := range []bool{true, false} {
					q := argQuery(f, expr(cat, mut))
					res := eng.Deduce(q)
					concrete := q
					concrete.Form = res.Type.Form
					if got, want := res.Verdict, binding.Resolve(concrete); got != want {
						t.Errorf("%v %v %v mut=%v: %v != %v", p, f, cat, mut, got, want)
					}
				}
			}
		}
	}
}

func TestDeducedPersistentImmutableRejectsTemporaries(t *testing.T) {
	eng := New(UniversalPolicy)
	for _, cat := range []valuecat.Category{valuecat.Expiring, valuecat.Materializing} {
		res := eng.Deduce(argQuery(binding.DeducedPersistentImmutable, expr(cat, true)))
		if res.Verdict.Kind != binding.Forbidden {
			t.Errorf("%v: %v", cat, res.Verdict)
		}
	}
	res := eng.Deduce(argQuery(binding.DeducedPersistentImmutable, expr(valuecat.Persistent, true)))
	if res.Verdict.Kind != binding.Allowed || res.Type.String() != "Widget const&" {
		t.Errorf("persistent: %v %q", res.Verdict, res.Type)
	}
}

func TestDeducedPersistentMutableNeedsMutable(t *testing.T) {
	eng := New(UniversalPolicy)
	res := eng.Deduce(argQuery(binding.DeducedPersistentMutable, expr(valuecat.Persistent, false)))
	if res.Verdict.Kind != binding.Forbidden || res.Verdict.Reason != binding.ReasonImmutable {
		t.Fatalf("got %v", res.Verdict)
	}
}

func TestDeducedCapture(t *testing.T) {
	eng := New(UniversalPolicy)
	tests := []struct {
		name string
		expr valuecat.Expr
		kind binding.Kind
	}{
		{"persistent is copied", expr(valuecat.Persistent, true), binding.AllowedViaTemporary},
		{"expiring is consumed", expr(valuecat.Expiring, true), binding.Allowed},
		{"const expiring is copied", expr(valuecat.Expiring, false), binding.AllowedViaTemporary},
		{"materializing", expr(valuecat.Materializing, true), binding.Allowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := eng.Deduce(argQuery(binding.DeducedCapture, tc.expr))
			if res.Verdict.Kind != tc.kind {
				t.Errorf("verdict = %v, want %v", res.Verdict, tc.kind)
			}
			if !res.Type.Owned || res.Type.String() != "Widget" {
				t.Errorf("type = %+v", res.Type)
			}
		})
	}
}

func TestDeducedFormsUnderLegacy(t *testing.T) {
	tests := []struct {
		name string
		form binding.Form
		ctx  binding.Context
		expr valuecat.Expr
		want binding.Verdict
	}{
		{"capture copies persistent", binding.DeducedCapture, binding.ArgumentBinding, expr(valuecat.Persistent, true),
			binding.Verdict{Kind: binding.AllowedViaTemporary, Owner: binding.OwnerCallFrame, Scope: 1}},
		{"capture copies const persistent", binding.DeducedCapture, binding.ArgumentBinding, expr(valuecat.Persistent, false),
			binding.Verdict{Kind: binding.AllowedViaTemporary, Owner: binding.OwnerCallFrame, Scope: 1}},
		{"capture copies const expiring", binding.DeducedCapture, binding.ArgumentBinding, expr(valuecat.Expiring, false),
			binding.Verdict{Kind: binding.AllowedViaTemporary, Owner: binding.OwnerCallFrame, Scope: 1}},
		{"capture consumes expiring", binding.DeducedCapture, binding.ArgumentBinding, expr(valuecat.Expiring, true),
			binding.Verdict{Kind: binding.Allowed}},
		{"capture materializing", binding.DeducedCapture, binding.ArgumentBinding, expr(valuecat.Materializing, true),
			binding.Verdict{Kind: binding.Allowed}},
		{"capture into variable", binding.DeducedCapture, binding.VariableInit, expr(valuecat.Persistent, true),
			binding.Verdict{Kind: binding.AllowedViaTemporary, Owner: binding.OwnerDeclaredVariable, Scope: 1}},
		{"persistent-immutable binds temporaries", binding.DeducedPersistentImmutable, binding.ArgumentBinding, expr(valuecat.Materializing, true),
			binding.Verdict{Kind: binding.Allowed}},
		{"forwarding persistent", binding.DeducedFromExpiring, binding.ArgumentBinding, expr(valuecat.Persistent, true),
			binding.Verdict{Kind: binding.Allowed}},
		{"auto const extends temporary", binding.AutoPersistentImmutable, binding.VariableInit, expr(valuecat.Materializing, true),
			binding.Verdict{Kind: binding.AllowedViaTemporary, Owner: binding.OwnerDeclaredVariable, Scope: 1}},
	}
	eng := New(UniversalPolicy)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := binding.Query{Mode: mode.Legacy, Form: tc.form, Context: tc.ctx, Expr: tc.expr, Site: 1}
			res := eng.Deduce(q)
			if diff := cmp.Diff(tc.want, res.Verdict); diff != "" {
				t.Errorf("verdict (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAutoForcesUniversalAndRejectsCopies(t *testing.T) {
	eng := New(SplitPolicy)
	q := binding.Query{Mode: mode.Proposed, Form: binding.AutoUniversal, Context: binding.VariableInit, Expr: expr(valuecat.Persistent, true)}
	res := eng.Deduce(q)
	if res.Policy != UniversalPolicy {
		t.Fatalf("auto-universal must force universal policy, got %v", res.Policy)
	}
	if res.Verdict.Kind != binding.Allowed || res.Type.Form != binding.PersistentMutable {
		t.Fatalf("persistent into auto&&: %v %+v", res.Verdict, res.Type)
	}

	// restricted-flex in a conditional-binding context would materialize a temporary
	q = binding.Query{Mode: mode.Proposed, Form: binding.AutoUniversal, Context: binding.ConditionalBindingInit, Expr: expr(valuecat.Materializing, false)}
	res = eng.Deduce(q)
	if res.Verdict.Kind != binding.Forbidden || res.Verdict.Reason != binding.ReasonImplicitCopy {
		t.Fatalf("expected implicit copy refusal, got %v", res.Verdict)
	}
	if res.Verdict.Suggest.Alt != binding.AltOwnedValue {
		t.Errorf("suggestion = %v", res.Verdict.Suggest)
	}

	// legacy keeps lifetime extension
	q.Mode = mode.Legacy
	q.Context = binding.VariableInit
	res = eng.Deduce(q)
	if res.Verdict.Kind != binding.AllowedViaTemporary || res.Verdict.Owner != binding.OwnerDeclaredVariable {
		t.Fatalf("legacy auto&& of temporary: %v", res.Verdict)
	}
}

func TestDeduceRejectsConcreteForms(t *testing.T) {
	res := New(UniversalPolicy).Deduce(argQuery(binding.RestrictedMutable, expr(valuecat.Persistent, true)))
	if res.Verdict.Kind != binding.Forbidden || res.Verdict.Reason != binding.ReasonNotConcrete {
		t.Fatalf("got %v", res.Verdict)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("SPLIT"); err != nil || p != SplitPolicy {
		t.Fatalf("ParsePolicy = %v, %v", p, err)
	}
	if _, err := ParsePolicy("both"); err == nil {
		t.Fatal("expected error")
	}
}
