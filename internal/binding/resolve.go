package binding

import (
	"refbind/internal/mode"
	"refbind/internal/valuecat"
)

// Query is one binding decision.
// Site is the scope that owns a temporary if one is needed: the full
// expression for arguments, the declared variable's scope otherwise.
type Query struct {
	Mode    mode.Mode
	Form    Form
	Context Context
	Expr    valuecat.Expr
	Site    valuecat.ScopeID
}

// rule is one cell of a decision table.
type rule struct {
	kind        Kind
	owner       Owner
	mutableOnly bool
	reason      Reason
	suggest     Suggestion
}

func allow() rule { return rule{kind: Allowed} }

func temp(o Owner) rule { return rule{kind: AllowedViaTemporary, owner: o} }

// allowMut is Allowed for mutable expressions; immutable ones are refused
// and pointed at weaker.
func allowMut(weaker Form) rule {
	return rule{kind: Allowed, mutableOnly: true, suggest: Suggestion{Alt: AltForm, Form: weaker}}
}

func forbid(r Reason, s Suggestion) rule { return rule{kind: Forbidden, reason: r, suggest: s} }

func useForm(f Form) Suggestion { return Suggestion{Alt: AltForm, Form: f} }

var useDeclarator = Suggestion{Alt: AltConditionalDeclarator}

// row holds the cells for Persistent, Expiring, Materializing.
type row [3]rule

// table is indexed by [form-PersistentMutable][context].
type table [4][3]row

var persistentMutRow = row{
	allowMut(PersistentImmutable),
	forbid(ReasonCategory, useForm(RestrictedMutable)),
	forbid(ReasonCategory, useForm(RestrictedMutable)),
}

var persistentMutVarRow = row{
	allowMut(PersistentImmutable),
	forbid(ReasonCategory, useForm(RestrictedMutable)),
	forbid(ReasonCategory, useDeclarator),
}

var proposedTable = table{
	PersistentMutable - 1: {
		ArgumentBinding:        persistentMutRow,
		VariableInit:           persistentMutVarRow,
		ConditionalBindingInit: persistentMutVarRow,
	},
	PersistentImmutable - 1: {
		ArgumentBinding: {
			allow(),
			forbid(ReasonCategory, useForm(RestrictedFlexible)),
			forbid(ReasonCategory, useForm(RestrictedFlexible)),
		},
		VariableInit: {
			allow(),
			forbid(ReasonCategory, useForm(RestrictedFlexible)),
			forbid(ReasonNoLifetimeExtension, useDeclarator),
		},
		ConditionalBindingInit: {
			allow(),
			forbid(ReasonCategory, useForm(RestrictedFlexible)),
			forbid(ReasonNoLifetimeExtension, useDeclarator),
		},
	},
	RestrictedMutable - 1: {
		ArgumentBinding: {
			temp(OwnerCallFrame),
			allowMut(RestrictedFlexible),
			allow(),
		},
		VariableInit: {
			forbid(ReasonCategory, useForm(PersistentMutable)),
			allowMut(RestrictedFlexible),
			forbid(ReasonNoLifetimeExtension, useDeclarator),
		},
		ConditionalBindingInit: {
			forbid(ReasonCategory, useForm(PersistentMutable)),
			allowMut(RestrictedFlexible),
			forbid(ReasonNoLifetimeExtension, useDeclarator),
		},
	},
	// The VariableInit row has no known use case and is kept only until
	// real code shows whether it should go.
	RestrictedFlexible - 1: {
		ArgumentBinding: {allow(), allow(), allow()},
		VariableInit: {
			allow(),
			allow(),
			forbid(ReasonNoLifetimeExtension, useDeclarator),
		},
		ConditionalBindingInit: {allow(), allow(), temp(OwnerDeclaredVariable)},
	},
}

var legacyTable = table{
	PersistentMutable - 1: {
		ArgumentBinding:        persistentMutRow,
		VariableInit:           persistentMutVarRow,
		ConditionalBindingInit: persistentMutVarRow,
	},
	PersistentImmutable - 1: {
		ArgumentBinding:        {allow(), allow(), allow()},
		VariableInit:           {allow(), allow(), temp(OwnerDeclaredVariable)},
		ConditionalBindingInit: {allow(), allow(), temp(OwnerDeclaredVariable)},
	},
	RestrictedMutable - 1: {
		ArgumentBinding: {
			forbid(ReasonCategory, useForm(PersistentImmutable)),
			allowMut(RestrictedFlexible),
			allow(),
		},
		VariableInit: {
			forbid(ReasonCategory, useForm(PersistentMutable)),
			allowMut(RestrictedFlexible),
			temp(OwnerDeclaredVariable),
		},
		ConditionalBindingInit: {
			forbid(ReasonCategory, useForm(PersistentMutable)),
			allowMut(RestrictedFlexible),
			temp(OwnerDeclaredVariable),
		},
	},
	RestrictedFlexible - 1: {
		ArgumentBinding: {
			forbid(ReasonCategory, useForm(PersistentImmutable)),
			allow(),
			allow(),
		},
		VariableInit: {
			forbid(ReasonCategory, useForm(PersistentImmutable)),
			allow(),
			temp(OwnerDeclaredVariable),
		},
		ConditionalBindingInit: {
			forbid(ReasonCategory, useForm(PersistentImmutable)),
			allow(),
			temp(OwnerDeclaredVariable),
		},
	},
}

// Resolve returns the verdict for q. It is pure: the same query always
// yields the same verdict. Deduced forms are refused; they must be resolved
// by the deduction engine, which re-submits the concrete form they stand for.
func Resolve(q Query) Verdict {
	if !q.Form.IsConcrete() {
		return Verdict{Kind: Forbidden, Reason: ReasonNotConcrete}
	}
	if q.Context > ConditionalBindingInit || q.Expr.Category > valuecat.Materializing {
		return Verdict{Kind: Forbidden, Reason: ReasonCategory}
	}

	t := &legacyTable
	if q.Mode == mode.Proposed {
		t = &proposedTable
	}
	r := t[q.Form-1][q.Context][q.Expr.Category]

	switch {
	case r.kind == Forbidden:
		return Verdict{Kind: Forbidden, Reason: r.reason, Suggest: r.suggest}
	case r.mutableOnly && !q.Expr.Mutable:
		return Verdict{Kind: Forbidden, Reason: ReasonImmutable, Suggest: r.suggest}
	case r.kind == AllowedViaTemporary:
		return Verdict{Kind: AllowedViaTemporary, Owner: r.owner, Scope: q.Site}
	}
	return Verdict{Kind: Allowed}
}

// Prefer picks the candidate overload resolution should keep: the first
// direct Allowed verdict, else the first AllowedViaTemporary, else -1.
// ambiguous is true when a direct and a temporary-creating candidate were
// both viable; the direct one always wins.
func Prefer(verdicts []Verdict) (index int, ambiguous bool) {
	direct, viaTemp := -1, -1
	for i, v := range verdicts {
		switch v.Kind {
		case Allowed:
			if direct < 0 {
				direct = i
			}
		case AllowedViaTemporary:
			if viaTemp < 0 {
				viaTemp = i
			}
		}
	}
	switch {
	case direct >= 0:
		return direct, viaTemp >= 0
	case viaTemp >= 0:
		return viaTemp, false
	}
	return -1, false
}
