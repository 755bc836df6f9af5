package binding

import (
	"refbind/internal/mode"
	"refbind/internal/valuecat"
)

// Cell is one resolved entry of the decision table.
type Cell struct {
	Mutable   Verdict
	Immutable Verdict
}

// Row is the decision table line for one form and context.
type Row struct {
	Form    Form
	Context Context
	Cells   [3]Cell // indexed by valuecat.Category
}

// Table evaluates Resolve over every concrete form, context and category
// for m. Renderers and tests read the table through here so that Resolve
// stays the only source of verdicts.
func Table(m mode.Mode) []Row {
	rows := make([]Row, 0, len(ConcreteForms)*len(Contexts))
	for _, f := range ConcreteForms {
		for _, c := range Contexts {
			r := Row{Form: f, Context: c}
			for _, cat := range valuecat.Categories {
				q := Query{Mode: m, Form: f, Context: c, Expr: valuecat.Expr{Category: cat, Mutable: true}}
				r.Cells[cat].Mutable = Resolve(q)
				q.Expr.Mutable = false
				r.Cells[cat].Immutable = Resolve(q)
			}
			rows = append(rows, r)
		}
	}
	return rows
}

// Label is the compact text used by the table renderer.
func (c Cell) Label() string {
	if c.Mutable == c.Immutable {
		return short(c.Mutable)
	}
	return short(c.Mutable) + " if mutable, else " + short(c.Immutable)
}

func short(v Verdict) string {
	switch v.Kind {
	case Allowed:
		return "Allowed"
	case AllowedViaTemporary:
		if v.Owner == OwnerCallFrame {
			return "Temporary(CallFrame)"
		}
		return "Temporary(DeclaredVariable)"
	}
	return "Forbidden"
}
