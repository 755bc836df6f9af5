package lifetime

import (
	"refbind/internal/binding"
	"refbind/internal/mode"
	"refbind/internal/valuecat"
)

// Chain describes a RestrictedMutable argument passed down a forwarding chain.
type Chain struct {
	Verdicts      []binding.Verdict
	Constructions int
	Moves         int
}

// OK reports whether every frame accepted the binding.
func (c Chain) OK() bool {
	for _, v := range c.Verdicts {
		if !v.OK() {
			return false
		}
	}
	return len(c.Verdicts) > 0
}

// Forward binds src to a RestrictedMutable parameter in the first frame and
// passes it on through the rest. The value is constructed at most once, at
// the first binding site; every later frame receives it as a mutable
// expiring expression, so it is moved, never copied again.
// Resolution stops at the first Forbidden frame.
//
// Construct-once-then-move is an assumption: whether later frames may copy
// is still undecided, and the count here must change if that is settled.
func Forward(m mode.Mode, src valuecat.Expr, frames []valuecat.ScopeID) Chain {
	var c Chain
	cur := src
	for i, scope := range frames {
		v := binding.Resolve(binding.Query{
			Mode:    m,
			Form:    binding.RestrictedMutable,
			Context: binding.ArgumentBinding,
			Expr:    cur,
			Site:    scope,
		})
		c.Verdicts = append(c.Verdicts, v)
		if !v.OK() {
			return c
		}
		if i == 0 {
			if v.Kind == binding.AllowedViaTemporary || cur.Category == valuecat.Materializing {
				c.Constructions = 1
			}
		} else {
			c.Moves++
		}
		cur = valuecat.Expr{
			Category: valuecat.Expiring,
			Mutable:  true,
			Type:     src.Type,
			Scope:    scope,
			Span:     src.Span,
		}
	}
	return c
}
