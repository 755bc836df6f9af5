package deduce

import (
	"refbind/internal/binding"
	"refbind/internal/mode"
	"refbind/internal/valuecat"
)

// Type is the outcome of deduction: the bound type plus qualifiers and the
// concrete reference form it stands for. Owned is set when the parameter
// or variable holds a value rather than a reference.
type Type struct {
	Base  string
	Const bool
	Form  binding.Form
	Owned bool
}

func (t Type) String() string {
	s := t.Base
	if t.Const {
		s += " const"
	}
	if t.Owned {
		return s
	}
	switch t.Form {
	case binding.PersistentMutable, binding.PersistentImmutable:
		return s + "&"
	case binding.RestrictedMutable, binding.RestrictedFlexible:
		return s + "&&"
	}
	return s
}

// Result pairs the deduced type with the verdict the resolver gave for it.
type Result struct {
	Type    Type
	Verdict binding.Verdict
	// Policy is the policy actually applied; auto forms may override the engine's.
	Policy Policy
}

// Engine deduces under one configured policy.
type Engine struct {
	Policy Policy
}

// New returns an engine using p for the forwarding form.
func New(p Policy) *Engine {
	return &Engine{Policy: p}
}

// Deduce resolves q.Form, which must be a deduced form, and submits the
// concrete form it stands for to binding.Resolve.
func (e *Engine) Deduce(q binding.Query) Result {
	policy := e.Policy
	if q.Form == binding.AutoUniversal {
		policy = UniversalPolicy
	}

	t, resolveAs, ok := deduceType(q.Form, q.Expr, policy)
	if !ok {
		return Result{Verdict: binding.Verdict{Kind: binding.Forbidden, Reason: binding.ReasonNotConcrete}, Policy: policy}
	}

	concrete := q
	concrete.Form = t.Form
	concrete.Expr = resolveAs
	v := binding.Resolve(concrete)
	if q.Form == binding.DeducedCapture && q.Mode == mode.Legacy && resolveAs.Category == valuecat.Persistent {
		v = legacyCapture(concrete)
	}

	// Proposed only: legacy auto variables still extend temporaries.
	if q.Form.IsAuto() && q.Mode == mode.Proposed && v.Kind == binding.AllowedViaTemporary {
		v = binding.Verdict{
			Kind:    binding.Forbidden,
			Reason:  binding.ReasonImplicitCopy,
			Suggest: binding.Suggestion{Alt: binding.AltOwnedValue},
		}
	}
	return Result{Type: t, Verdict: v, Policy: policy}
}

// legacyCapture is by-value capture of a persistent source in Legacy mode:
// the parameter is copy-constructed, so the resolver sees the copy as a
// fresh mutable temporary and the verdict records the copy.
func legacyCapture(q binding.Query) binding.Verdict {
	copyQ := q
	copyQ.Expr.Category = valuecat.Materializing
	copyQ.Expr.Mutable = true
	v := binding.Resolve(copyQ)
	if v.Kind != binding.Allowed {
		return v
	}
	owner := binding.OwnerCallFrame
	if q.Context != binding.ArgumentBinding {
		owner = binding.OwnerDeclaredVariable
	}
	return binding.Verdict{Kind: binding.AllowedViaTemporary, Owner: owner, Scope: q.Site}
}

// deduceType returns the deduced type and the expression view submitted to
// the resolver. The view differs from expr only for DeducedCapture of an
// immutable expiring source, which cannot be consumed and is copied.
func deduceType(f binding.Form, expr valuecat.Expr, p Policy) (Type, valuecat.Expr, bool) {
	base := expr.Type
	switch f {
	case binding.DeducedFromExpiring, binding.AutoUniversal:
		if p == SplitPolicy {
			return Type{Base: base, Form: binding.RestrictedMutable}, expr, true
		}
		return universal(expr), expr, true

	case binding.DeducedCapture:
		t := Type{Base: base, Form: binding.RestrictedMutable, Owned: true}
		if expr.Category == valuecat.Expiring && !expr.Mutable {
			copySrc := expr
			copySrc.Category = valuecat.Persistent
			return t, copySrc, true
		}
		return t, expr, true

	case binding.DeducedPersistentImmutable, binding.AutoPersistentImmutable:
		return Type{Base: base, Const: true, Form: binding.PersistentImmutable}, expr, true

	case binding.DeducedPersistentMutable, binding.AutoPersistentMutable:
		return Type{Base: base, Form: binding.PersistentMutable}, expr, true
	}
	return Type{}, expr, false
}

// universal mirrors forwarding-reference deduction: persistent sources
// deduce an lvalue reference, everything else a restricted one, keeping
// the source's constness.
func universal(expr valuecat.Expr) Type {
	t := Type{Base: expr.Type, Const: !expr.Mutable}
	switch {
	case expr.Category == valuecat.Persistent && expr.Mutable:
		t.Form = binding.PersistentMutable
	case expr.Category == valuecat.Persistent:
		t.Form = binding.PersistentImmutable
	case expr.Mutable:
		t.Form = binding.RestrictedMutable
	default:
		t.Form = binding.RestrictedFlexible
	}
	return t
}
