// Package lifetime replaces implicit lifetime extension: a conditional
// declarator becomes either a direct reference or an owned value depending
// on the initializer's value category.
package lifetime

import (
	"fmt"

	"refbind/internal/binding"
	"refbind/internal/mode"
	"refbind/internal/valuecat"
)

// Intent is the declarator's preference.
type Intent uint8

const (
	PreferReference Intent = iota
	PreferConst
)

func (i Intent) String() string {
	if i == PreferConst {
		return "prefer-const"
	}
	return "prefer-ref"
}

// ParseIntent accepts prefer-ref|prefer-const.
func ParseIntent(s string) (Intent, error) {
	switch s {
	case "prefer-ref", "prefer-reference":
		return PreferReference, nil
	case "prefer-const":
		return PreferConst, nil
	}
	return PreferReference, fmt.Errorf("unknown declarator intent %q", s)
}

// Declarator is a conditional-lifetime declaration.
// Mutable asks for a PersistentMutable reference when the initializer is
// persistent; PreferConst ignores it.
type Declarator struct {
	Intent  Intent
	Base    string
	Mutable bool
	Scope   valuecat.ScopeID
}

// BindingKind is the effective shape of the declared variable.
type BindingKind uint8

const (
	Reference BindingKind = iota
	Owned
)

func (k BindingKind) String() string {
	if k == Owned {
		return "owned"
	}
	return "reference"
}

// Construction says how an owned value is produced.
type Construction uint8

const (
	ConstructNone Construction = iota
	ConstructMove
	ConstructInPlace
	// ConstructCopy: an immutable expiring source cannot be moved from.
	ConstructCopy
)

func (c Construction) String() string {
	switch c {
	case ConstructMove:
		return "move"
	case ConstructInPlace:
		return "in-place"
	case ConstructCopy:
		return "copy"
	}
	return "none"
}

// Binding is the declared variable's effective type, fixed at declaration.
type Binding struct {
	Kind          BindingKind
	Form          binding.Form // Reference only
	Const         bool
	Type          string
	Construction  Construction
	Constructions int
	Verdict       binding.Verdict
}

func (b Binding) String() string {
	t := b.Type
	if b.Const {
		t += " const"
	}
	if b.Kind == Reference {
		return fmt.Sprintf("reference %s (%s)", t, b.Form)
	}
	return fmt.Sprintf("owned %s (%s construction)", t, b.Construction)
}

// Synthesize resolves d against init under m.
// Persistent initializers bind directly and construct nothing; everything
// else yields an owned value built by exactly one construction.
func Synthesize(m mode.Mode, d Declarator, init valuecat.Expr) Binding {
	typ := d.Base
	if typ == "" {
		typ = init.Type
	}

	if init.Category == valuecat.Persistent {
		form := binding.PersistentImmutable
		if d.Intent == PreferReference && d.Mutable {
			form = binding.PersistentMutable
		}
		v := binding.Resolve(binding.Query{
			Mode:    m,
			Form:    form,
			Context: binding.ConditionalBindingInit,
			Expr:    init,
			Site:    d.Scope,
		})
		return Binding{
			Kind:    Reference,
			Form:    form,
			Const:   form == binding.PersistentImmutable,
			Type:    typ,
			Verdict: v,
		}
	}

	b := Binding{
		Kind:          Owned,
		Const:         d.Intent == PreferConst,
		Type:          typ,
		Constructions: 1,
		Verdict:       binding.Verdict{Kind: binding.Allowed},
	}
	switch {
	case init.Category == valuecat.Materializing:
		b.Construction = ConstructInPlace
	case init.Mutable:
		b.Construction = ConstructMove
	default:
		b.Construction = ConstructCopy
	}
	return b
}
