package binding

import (
	"fmt"

	"refbind/internal/valuecat"
)

// Kind is the outcome class of a binding decision.
type Kind uint8

const (
	Forbidden Kind = iota
	Allowed
	AllowedViaTemporary
)

func (k Kind) String() string {
	switch k {
	case Allowed:
		return "allowed"
	case AllowedViaTemporary:
		return "allowed-via-temporary"
	}
	return "forbidden"
}

// Owner bounds the lifetime of a materialized temporary.
type Owner uint8

const (
	OwnerNone Owner = iota
	// OwnerCallFrame: the temporary dies with the enclosing full expression.
	OwnerCallFrame
	// OwnerDeclaredVariable: the temporary lives as long as the declared variable.
	OwnerDeclaredVariable
)

func (o Owner) String() string {
	switch o {
	case OwnerCallFrame:
		return "call-frame"
	case OwnerDeclaredVariable:
		return "declared-variable"
	}
	return "none"
}

// Reason explains a Forbidden verdict.
type Reason uint8

const (
	ReasonNone Reason = iota
	// ReasonCategory: the value category is incompatible with the form.
	ReasonCategory
	// ReasonImmutable: the form needs a mutable expression.
	ReasonImmutable
	// ReasonNoLifetimeExtension: a temporary would die before the variable.
	ReasonNoLifetimeExtension
	// ReasonImplicitCopy: an auto-deduced variable would silently copy.
	ReasonImplicitCopy
	// ReasonNotConcrete: deduced forms must go through the deduction engine.
	ReasonNotConcrete
)

func (r Reason) String() string {
	switch r {
	case ReasonCategory:
		return "value category cannot bind to this form"
	case ReasonImmutable:
		return "form requires a mutable expression"
	case ReasonNoLifetimeExtension:
		return "temporary would not outlive the variable"
	case ReasonImplicitCopy:
		return "implicit copy into auto-deduced variable"
	case ReasonNotConcrete:
		return "deduced form must be resolved by deduction"
	}
	return "none"
}

// Alternative is the kind of remedy a Suggestion proposes.
type Alternative uint8

const (
	AltNone Alternative = iota
	// AltForm proposes a different reference form.
	AltForm
	// AltConditionalDeclarator proposes the conditional-lifetime declarator.
	AltConditionalDeclarator
	// AltOwnedValue proposes declaring an owned value.
	AltOwnedValue
)

// Suggestion is the alternative attached to every Forbidden verdict.
type Suggestion struct {
	Alt  Alternative
	Form Form
}

func (s Suggestion) String() string {
	switch s.Alt {
	case AltForm:
		return "use a " + s.Form.String() + " reference"
	case AltConditionalDeclarator:
		return "use a conditional-lifetime declarator"
	case AltOwnedValue:
		return "declare an owned value"
	}
	return ""
}

// Verdict is the resolver's outcome for one (form, expression) pair.
type Verdict struct {
	Kind    Kind
	Owner   Owner            // AllowedViaTemporary only
	Scope   valuecat.ScopeID // AllowedViaTemporary only
	Reason  Reason           // Forbidden only
	Suggest Suggestion       // Forbidden only
}

// OK reports whether binding is permitted in any way.
func (v Verdict) OK() bool {
	return v.Kind != Forbidden
}

func (v Verdict) String() string {
	switch v.Kind {
	case Allowed:
		return "allowed"
	case AllowedViaTemporary:
		return fmt.Sprintf("allowed-via-temporary(%s, scope %d)", v.Owner, v.Scope)
	}
	return fmt.Sprintf("forbidden(%s)", v.Reason)
}
