package valuecat

import (
	"testing"
)

func TestClassifyCategories(t *testing.T) {
	name := Descriptor{Kind: ExprName, Type: "Widget"}
	temp := Descriptor{Kind: ExprTemporary, Type: "Widget"}
	constName := Descriptor{Kind: ExprName, Type: "Widget", Const: true}

	tests := []struct {
		name    string
		d       Descriptor
		want    Category
		mutable bool
	}{
		{"name", name, Persistent, true},
		{"const name", constName, Persistent, false},
		{"deref", Descriptor{Kind: ExprDeref, Type: "int"}, Persistent, true},
		{"string literal", Descriptor{Kind: ExprStringLiteral, Type: "char[3]"}, Persistent, false},
		{"assign", Descriptor{Kind: ExprAssign, Type: "int"}, Persistent, true},
		{"literal", Descriptor{Kind: ExprLiteral, Type: "int"}, Materializing, true},
		{"arith", Descriptor{Kind: ExprArith, Type: "int"}, Materializing, true},
		{"temporary", temp, Materializing, true},
		{"call by value", Descriptor{Kind: ExprCall, Type: "Widget"}, Materializing, true},
		{"call returning ref", Descriptor{Kind: ExprCall, Type: "Widget", Return: ReturnPersistentRef}, Persistent, true},
		{"call returning rref", Descriptor{Kind: ExprCall, Type: "Widget", Return: ReturnExpiringRef}, Expiring, true},
		{"move", Descriptor{Kind: ExprMove, Type: "Widget", Operands: []Descriptor{name}}, Expiring, true},
		{"move of const", Descriptor{Kind: ExprMove, Type: "Widget", Operands: []Descriptor{constName}}, Expiring, false},
		{"member of name", Descriptor{Kind: ExprMember, Type: "int", Operands: []Descriptor{name}}, Persistent, true},
		{"member of temporary", Descriptor{Kind: ExprMember, Type: "int", Operands: []Descriptor{temp}}, Expiring, true},
		{"member of const", Descriptor{Kind: ExprMember, Type: "int", Operands: []Descriptor{constName}}, Persistent, false},
		{"implicit this member", Descriptor{Kind: ExprMember, Type: "int"}, Persistent, true},
		{"subscript of temporary", Descriptor{Kind: ExprSubscript, Type: "int", Operands: []Descriptor{temp}}, Expiring, true},
		{"cond same", Descriptor{Kind: ExprConditional, Type: "Widget", Operands: []Descriptor{name, name}}, Persistent, true},
		{"cond mixed", Descriptor{Kind: ExprConditional, Type: "Widget", Operands: []Descriptor{name, temp}}, Materializing, true},
		{"cond const arm", Descriptor{Kind: ExprConditional, Type: "Widget", Operands: []Descriptor{constName, name}}, Persistent, false},
		{"invalid", Descriptor{}, Materializing, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.d)
			if got.Category != tc.want {
				t.Errorf("category = %v, want %v", got.Category, tc.want)
			}
			if got.Mutable != tc.mutable {
				t.Errorf("mutable = %v, want %v", got.Mutable, tc.mutable)
			}
			if got.Type != tc.d.Type {
				t.Errorf("type = %q, want %q", got.Type, tc.d.Type)
			}
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	for k := ExprInvalid; k <= ExprArith+1; k++ {
		for _, ret := range []ReturnShape{ReturnValue, ReturnPersistentRef, ReturnExpiringRef} {
			e := Classify(Descriptor{Kind: k, Return: ret})
			switch e.Category {
			case Persistent, Expiring, Materializing:
			default:
				t.Fatalf("kind %v produced category %v", k, e.Category)
			}
		}
	}
}

func TestExprKindNames(t *testing.T) {
	for k := ExprName; k <= ExprArith; k++ {
		back, ok := ExprKindByName(k.String())
		if !ok || back != k {
			t.Errorf("ExprKindByName(%q) = %v,%v", k.String(), back, ok)
		}
	}
	if _, ok := ExprKindByName("invalid"); ok {
		t.Error("invalid must not be addressable by name")
	}
}

func TestParseCategory(t *testing.T) {
	for _, s := range []string{"lvalue", "persistent", "XVALUE", "prvalue"} {
		if _, err := ParseCategory(s); err != nil {
			t.Errorf("ParseCategory(%q): %v", s, err)
		}
	}
	if _, err := ParseCategory("glvalue"); err == nil {
		t.Error("expected error for glvalue")
	}
}
