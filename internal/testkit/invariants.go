package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"refbind/internal/binding"
	"refbind/internal/source"
	"refbind/internal/unit"
)

// CheckVerdict verifies the shape of a verdict:
// 1) Allowed carries no owner, reason or suggestion
// 2) AllowedViaTemporary names an owner and carries no reason
// 3) Forbidden carries a reason and a suggested alternative
func CheckVerdict(v binding.Verdict) error {
	switch v.Kind {
	case binding.Allowed:
		if v.Owner != binding.OwnerNone || v.Reason != binding.ReasonNone || v.Suggest.Alt != binding.AltNone {
			return fmt.Errorf("allowed verdict carries extra data: %+v", v)
		}
	case binding.AllowedViaTemporary:
		if v.Owner == binding.OwnerNone {
			return fmt.Errorf("temporary without owner: %+v", v)
		}
		if v.Reason != binding.ReasonNone {
			return fmt.Errorf("temporary with reason %s", v.Reason)
		}
	case binding.Forbidden:
		if v.Reason == binding.ReasonNone {
			return fmt.Errorf("forbidden verdict without reason")
		}
		// deduced forms reaching Resolve have no concrete alternative to offer
		if v.Reason != binding.ReasonNotConcrete && v.Suggest.Alt == binding.AltNone {
			return fmt.Errorf("forbidden verdict (%s) without suggestion", v.Reason)
		}
		if v.Suggest.Alt == binding.AltForm && !v.Suggest.Form.IsConcrete() {
			return fmt.Errorf("suggested form %s is not concrete", v.Suggest.Form)
		}
	default:
		return fmt.Errorf("unknown verdict kind %d", v.Kind)
	}
	return nil
}

// CheckUnitSpans verifies that every statement span of u is non-empty,
// lies within the file, and that statements appear in source order.
func CheckUnitSpans(u *unit.Unit, sf *source.File) error {
	if u == nil || sf == nil {
		return fmt.Errorf("nil unit or file")
	}
	size, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	var prev source.Span
	for i, st := range u.Stmts {
		sp := st.Span
		if sp.File != sf.ID {
			return fmt.Errorf("stmt %d: span file mismatch: got=%d want=%d", i, sp.File, sf.ID)
		}
		if sp.End <= sp.Start {
			return fmt.Errorf("stmt %d: empty span %v", i, sp)
		}
		if sp.End > size {
			return fmt.Errorf("stmt %d: span %v beyond content (%d)", i, sp, size)
		}
		if i > 0 && sp.Start < prev.End {
			return fmt.Errorf("stmt %d: span %v overlaps previous %v", i, sp, prev)
		}
		if err := checkExprSpan(st.Expr.Span, sp, st.Kind); err != nil {
			return fmt.Errorf("stmt %d: %w", i, err)
		}
		prev = sp
	}
	return nil
}

func checkExprSpan(expr, stmt source.Span, kind unit.StmtKind) error {
	switch kind {
	case unit.StmtBind, unit.StmtDeduce, unit.StmtCond, unit.StmtCall, unit.StmtForward:
	default:
		return nil
	}
	if expr.Start < stmt.Start || expr.End > stmt.End {
		return fmt.Errorf("expression span %v is outside statement span %v", expr, stmt)
	}
	return nil
}
