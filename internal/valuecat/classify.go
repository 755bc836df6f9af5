package valuecat

import "refbind/internal/source"

// ExprKind is the syntactic shape reported by the type checker.
type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprName
	ExprDeref
	ExprLiteral
	ExprStringLiteral
	ExprCall
	ExprMove
	ExprTemporary
	ExprMember
	ExprSubscript
	ExprConditional
	ExprAssign
	ExprArith
)

var exprKindNames = map[ExprKind]string{
	ExprInvalid:       "invalid",
	ExprName:          "name",
	ExprDeref:         "deref",
	ExprLiteral:       "literal",
	ExprStringLiteral: "string",
	ExprCall:          "call",
	ExprMove:          "move",
	ExprTemporary:     "temp",
	ExprMember:        "member",
	ExprSubscript:     "subscript",
	ExprConditional:   "cond",
	ExprAssign:        "assign",
	ExprArith:         "arith",
}

func (k ExprKind) String() string {
	if s, ok := exprKindNames[k]; ok {
		return s
	}
	return "invalid"
}

// ExprKindByName maps a spelling back to its kind.
func ExprKindByName(name string) (ExprKind, bool) {
	for k, s := range exprKindNames {
		if s == name && k != ExprInvalid {
			return k, true
		}
	}
	return ExprInvalid, false
}

// ReturnShape is the declared return of a called function.
type ReturnShape uint8

const (
	ReturnValue ReturnShape = iota
	ReturnPersistentRef
	ReturnExpiringRef
)

// Descriptor is what the external type checker knows about an expression.
// Operands holds the object of member/subscript access, the operand of a
// move, or both arms of a conditional.
type Descriptor struct {
	Kind     ExprKind
	Type     string
	Const    bool
	Return   ReturnShape
	Operands []Descriptor
	Scope    ScopeID
	Span     source.Span
}

// Classify maps a descriptor to its category, mutability and type.
func Classify(d Descriptor) Expr {
	return Expr{
		Category: category(d),
		Mutable:  !isConst(d),
		Type:     d.Type,
		Scope:    d.Scope,
		Span:     d.Span,
	}
}

func category(d Descriptor) Category {
	switch d.Kind {
	case ExprName, ExprDeref, ExprStringLiteral, ExprAssign:
		return Persistent
	case ExprCall:
		switch d.Return {
		case ReturnPersistentRef:
			return Persistent
		case ReturnExpiringRef:
			return Expiring
		}
		return Materializing
	case ExprMove:
		return Expiring
	case ExprMember, ExprSubscript:
		// a sub-object of something persistent is persistent; of anything else, expiring
		if len(d.Operands) > 0 && category(d.Operands[0]) == Persistent {
			return Persistent
		}
		if len(d.Operands) == 0 {
			return Persistent
		}
		return Expiring
	case ExprConditional:
		if len(d.Operands) == 2 {
			a, b := category(d.Operands[0]), category(d.Operands[1])
			if a == b {
				return a
			}
		}
		return Materializing
	}
	return Materializing
}

func isConst(d Descriptor) bool {
	if d.Const {
		return true
	}
	switch d.Kind {
	case ExprStringLiteral:
		return true
	case ExprMember, ExprSubscript, ExprMove:
		return len(d.Operands) > 0 && isConst(d.Operands[0])
	case ExprConditional:
		for _, op := range d.Operands {
			if isConst(op) {
				return true
			}
		}
	}
	return false
}
