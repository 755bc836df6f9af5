package lifetime

import (
	"testing"

	"refbind/internal/binding"
	"refbind/internal/mode"
	"refbind/internal/valuecat"
)

func initExpr(cat valuecat.Category, mutable bool) valuecat.Expr {
	return valuecat.Expr{Category: cat, Mutable: mutable, Type: "Buffer", Scope: 2}
}

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name string
		decl Declarator
		init valuecat.Expr
		want Binding
	}{
		{
			name: "persistent prefer-ref",
			decl: Declarator{Intent: PreferReference, Scope: 3},
			init: initExpr(valuecat.Persistent, true),
			want: Binding{Kind: Reference, Form: binding.PersistentImmutable, Const: true, Type: "Buffer", Verdict: binding.Verdict{Kind: binding.Allowed}},
		},
		{
			name: "persistent prefer-ref mut",
			decl: Declarator{Intent: PreferReference, Mutable: true, Base: "View"},
			init: initExpr(valuecat.Persistent, true),
			want: Binding{Kind: Reference, Form: binding.PersistentMutable, Type: "View", Verdict: binding.Verdict{Kind: binding.Allowed}},
		},
		{
			name: "persistent prefer-const ignores mut",
			decl: Declarator{Intent: PreferConst, Mutable: true},
			init: initExpr(valuecat.Persistent, true),
			want: Binding{Kind: Reference, Form: binding.PersistentImmutable, Const: true, Type: "Buffer", Verdict: binding.Verdict{Kind: binding.Allowed}},
		},
		{
			name: "materializing prefer-ref",
			decl: Declarator{Intent: PreferReference},
			init: initExpr(valuecat.Materializing, true),
			want: Binding{Kind: Owned, Type: "Buffer", Construction: ConstructInPlace, Constructions: 1, Verdict: binding.Verdict{Kind: binding.Allowed}},
		},
		{
			name: "expiring prefer-ref",
			decl: Declarator{Intent: PreferReference},
			init: initExpr(valuecat.Expiring, true),
			want: Binding{Kind: Owned, Type: "Buffer", Construction: ConstructMove, Constructions: 1, Verdict: binding.Verdict{Kind: binding.Allowed}},
		},
		{
			name: "const expiring prefer-const",
			decl: Declarator{Intent: PreferConst},
			init: initExpr(valuecat.Expiring, false),
			want: Binding{Kind: Owned, Const: true, Type: "Buffer", Construction: ConstructCopy, Constructions: 1, Verdict: binding.Verdict{Kind: binding.Allowed}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, m := range []mode.Mode{mode.Legacy, mode.Proposed} {
				if got := Synthesize(m, tc.decl, tc.init); got != tc.want {
					t.Errorf("%s: got %+v\nwant %+v", m, got, tc.want)
				}
			}
		})
	}
}

func TestSynthesizeMutableRefToConst(t *testing.T) {
	b := Synthesize(mode.Proposed, Declarator{Intent: PreferReference, Mutable: true}, initExpr(valuecat.Persistent, false))
	if b.Kind != Reference || b.Verdict.Kind != binding.Forbidden || b.Verdict.Reason != binding.ReasonImmutable {
		t.Fatalf("got %+v", b)
	}
}

func TestParseIntent(t *testing.T) {
	if i, err := ParseIntent("prefer-const"); err != nil || i != PreferConst {
		t.Fatalf("ParseIntent = %v, %v", i, err)
	}
	if _, err := ParseIntent("prefer"); err == nil {
		t.Fatal("expected error")
	}
}

func TestForwardConstructsOnce(t *testing.T) {
	frames := []valuecat.ScopeID{1, 2, 3}

	c := Forward(mode.Proposed, initExpr(valuecat.Persistent, true), frames)
	if !c.OK() || c.Constructions != 1 || c.Moves != 2 {
		t.Fatalf("persistent: %+v", c)
	}
	if c.Verdicts[0].Kind != binding.AllowedViaTemporary || c.Verdicts[0].Owner != binding.OwnerCallFrame {
		t.Errorf("first frame = %v", c.Verdicts[0])
	}
	for i, v := range c.Verdicts[1:] {
		if v.Kind != binding.Allowed {
			t.Errorf("frame %d = %v", i+1, v)
		}
	}

	c = Forward(mode.Proposed, initExpr(valuecat.Expiring, true), frames)
	if !c.OK() || c.Constructions != 0 || c.Moves != 2 {
		t.Fatalf("expiring: %+v", c)
	}

	c = Forward(mode.Proposed, initExpr(valuecat.Materializing, true), frames)
	if !c.OK() || c.Constructions != 1 {
		t.Fatalf("materializing: %+v", c)
	}
}

func TestForwardStopsAtForbidden(t *testing.T) {
	c := Forward(mode.Legacy, initExpr(valuecat.Persistent, true), []valuecat.ScopeID{1, 2})
	if c.OK() || len(c.Verdicts) != 1 || c.Constructions != 0 {
		t.Fatalf("got %+v", c)
	}
	if (Chain{}).OK() {
		t.Fatal("empty chain must not be OK")
	}
}
