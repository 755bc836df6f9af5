package unit

import (
	"fmt"
	"strings"

	"refbind/internal/binding"
	"refbind/internal/mode"
)

// String prints st in the syntax Parse accepts.
func (st Stmt) String() string {
	switch st.Kind {
	case StmtPolicy:
		return "policy " + st.Policy.String()
	case StmtPush:
		if st.Region == mode.RegionFile {
			return fmt.Sprintf("push %s file", st.Mode)
		}
		return "push " + st.Mode.String()
	case StmtPop:
		return "pop"
	case StmtDeclare, StmtDefine:
		return st.Kind.String() + " " + st.Name
	case StmtBind, StmtDeduce:
		return fmt.Sprintf("%s %s %s %s", st.Kind, st.Form(), st.Context, FormatExpr(st.Expr))
	case StmtCond:
		var sb strings.Builder
		sb.WriteString("cond ")
		sb.WriteString(st.Intent.String())
		if st.Mutable {
			sb.WriteString(" mut")
		}
		base := st.Base
		if base == "" {
			base = "_"
		}
		fmt.Fprintf(&sb, " %s = %s", base, FormatExpr(st.Expr))
		return sb.String()
	case StmtCall:
		forms := make([]string, len(st.Forms))
		for i, f := range st.Forms {
			forms[i] = f.String()
		}
		return fmt.Sprintf("call %s %s %s", st.Name, strings.Join(forms, ","), FormatExpr(st.Expr))
	case StmtForward:
		return fmt.Sprintf("forward %d %s", st.Depth, FormatExpr(st.Expr))
	}
	return "# invalid"
}

// Form returns the first form of a bind, deduce or call statement.
func (st Stmt) Form() binding.Form {
	if len(st.Forms) == 0 {
		return binding.FormInvalid
	}
	return st.Forms[0]
}

// Format prints every statement of u, one per line.
func Format(u *Unit) string {
	var sb strings.Builder
	for _, st := range u.Stmts {
		sb.WriteString(st.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
