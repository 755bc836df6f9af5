// Package unit reads unit scripts: the ordered event log of one
// translation unit (mode pushes and pops, declarations, definitions and
// binding sites) in a line-oriented text form.
//
//	policy universal|split
//	push legacy|proposed [file]
//	pop
//	declare NAME
//	define NAME
//	bind FORM CONTEXT EXPR
//	deduce FORM CONTEXT EXPR
//	cond prefer-ref|prefer-const [mut] BASE = EXPR
//	call NAME FORM[,FORM...] EXPR
//	forward DEPTH EXPR
//
// EXPR is KIND[(EXPR[,EXPR])]:TYPE followed by options: const, scope=N,
// ret=value|ref|xref. Everything after '#' is a comment.
package unit

import (
	"refbind/internal/binding"
	"refbind/internal/deduce"
	"refbind/internal/lifetime"
	"refbind/internal/mode"
	"refbind/internal/source"
	"refbind/internal/valuecat"
)

// MaxForwardDepth bounds the frames of a forward statement.
const MaxForwardDepth = 1024

type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	StmtPolicy
	StmtPush
	StmtPop
	StmtDeclare
	StmtDefine
	StmtBind
	StmtDeduce
	StmtCond
	StmtCall
	StmtForward
)

var stmtNames = [...]string{
	StmtInvalid: "invalid",
	StmtPolicy:  "policy",
	StmtPush:    "push",
	StmtPop:     "pop",
	StmtDeclare: "declare",
	StmtDefine:  "define",
	StmtBind:    "bind",
	StmtDeduce:  "deduce",
	StmtCond:    "cond",
	StmtCall:    "call",
	StmtForward: "forward",
}

func (k StmtKind) String() string {
	if int(k) < len(stmtNames) {
		return stmtNames[k]
	}
	return stmtNames[StmtInvalid]
}

func stmtKindByName(s string) StmtKind {
	for k := StmtPolicy; int(k) < len(stmtNames); k++ {
		if stmtNames[k] == s {
			return k
		}
	}
	return StmtInvalid
}

// binds reports whether k is a binding site; policy must precede all of them.
func (k StmtKind) binds() bool {
	switch k {
	case StmtBind, StmtDeduce, StmtCond, StmtCall, StmtForward:
		return true
	}
	return false
}

// Stmt is one parsed line. Only the fields of its Kind are set.
type Stmt struct {
	Kind StmtKind
	Span source.Span

	Policy deduce.Policy // policy

	Mode   mode.Mode   // push
	Region mode.Region // push

	Name string // declare, define, call

	Forms    []binding.Form  // bind and deduce carry one, call one or more
	FormSpan source.Span     // bind, deduce, call: the form token
	Context  binding.Context // bind, deduce

	Intent  lifetime.Intent // cond
	Mutable bool            // cond
	Base    string          // cond; empty means the initializer's type

	Depth int // forward

	Expr valuecat.Descriptor
}

// Unit is a parsed unit script.
type Unit struct {
	File  source.FileID
	Path  string
	Stmts []Stmt
	// Policy is set when the script carries a policy statement.
	Policy    deduce.Policy
	HasPolicy bool
}

// ModeEvent returns the directive event of a push or pop statement.
func (st Stmt) ModeEvent() (mode.Event, bool) {
	switch st.Kind {
	case StmtPush:
		return mode.Event{Kind: mode.EventPush, Mode: st.Mode, Region: st.Region, Span: st.Span}, true
	case StmtPop:
		return mode.Event{Kind: mode.EventPop, Span: st.Span}, true
	}
	return mode.Event{}, false
}
