package unit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"refbind/internal/binding"
	"refbind/internal/deduce"
	"refbind/internal/diag"
	"refbind/internal/lifetime"
	"refbind/internal/mode"
	"refbind/internal/source"
	"refbind/internal/trace"
)

// token is a whitespace-separated word and its offset within the line.
type token struct {
	text string
	off  int
}

// line is one statement with comments stripped.
type line struct {
	text string
	file source.FileID
	base uint32 // offset of text[0] in the file
	toks []token
}

func newLine(text string, file source.FileID, base uint32) *line {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimRight(text, " \t\r")
	l := &line{text: text, file: file, base: base}
	i := 0
	for i < len(text) {
		for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
			i++
		}
		start := i
		for i < len(text) && text[i] != ' ' && text[i] != '\t' {
			i++
		}
		if i > start {
			l.toks = append(l.toks, token{text: text[start:i], off: start})
		}
	}
	return l
}

func (l *line) span(from, to int) source.Span {
	lo, err := safecast.Conv[uint32](from)
	if err != nil {
		lo = 0
	}
	hi, err := safecast.Conv[uint32](to)
	if err != nil {
		hi = lo
	}
	return source.Span{File: l.file, Start: l.base + lo, End: l.base + hi}
}

func (l *line) whole() source.Span {
	return l.span(0, len(l.text))
}

func (l *line) tokSpan(i int) source.Span {
	if i >= len(l.toks) {
		return l.whole()
	}
	t := l.toks[i]
	return l.span(t.off, t.off+len(t.text))
}

func (l *line) errAt(i int, code diag.Code, format string, args ...any) *SyntaxError {
	return &SyntaxError{Code: code, Span: l.tokSpan(i), Msg: fmt.Sprintf(format, args...)}
}

// restExpr parses everything from token i on as an expression.
func (l *line) restExpr(i int) (st Stmt, err error) {
	if i >= len(l.toks) {
		return st, l.errAt(i, diag.SynBadArity, "missing expression")
	}
	off := l.toks[i].off
	base, convErr := safecast.Conv[uint32](off)
	if convErr != nil {
		return st, l.errAt(i, diag.SynBadExpr, "expression offset overflow")
	}
	st.Expr, err = parseExpr(l.text[off:], l.file, l.base+base)
	return st, err
}

// Parse reads the unit stored under id. Malformed lines are reported as
// SYN diagnostics and skipped; Parse itself never fails.
func Parse(ctx context.Context, fs *source.FileSet, id source.FileID, r diag.Reporter) *Unit {
	f := fs.Get(id)
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeUnit, "parse", trace.ParentFromContext(ctx))
	defer span.End("")

	u := &Unit{File: id, Path: f.Path}
	if r == nil {
		r = diag.NopReporter{}
	}

	content := f.Content
	offset := 0
	for len(content) > 0 {
		n := bytes.IndexByte(content, '\n')
		raw := content
		if n >= 0 {
			raw = content[:n]
		}
		base, err := safecast.Conv[uint32](offset)
		if err != nil {
			break
		}
		l := newLine(string(raw), id, base)
		if len(l.toks) > 0 {
			st, err := parseStmt(l, u)
			if err != nil {
				var se *SyntaxError
				if errors.As(err, &se) {
					diag.ReportError(r, se.Code, se.Span, se.Msg).Emit()
				}
			} else {
				if st.Kind == StmtPolicy {
					u.Policy, u.HasPolicy = st.Policy, true
				}
				u.Stmts = append(u.Stmts, st)
			}
		}
		if n < 0 {
			break
		}
		content = content[n+1:]
		offset += n + 1
	}
	return u
}

func arity(l *line, kind StmtKind, minTok, maxTok int) error {
	if n := len(l.toks); n < minTok || (maxTok >= 0 && n > maxTok) {
		return l.errAt(0, diag.SynBadArity, "wrong number of operands for %s", kind)
	}
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == ':' || c == '.' || c == '~':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		case c > 0x7f:
		default:
			return false
		}
	}
	return true
}

func parseStmt(l *line, u *Unit) (Stmt, error) {
	kind := stmtKindByName(l.toks[0].text)
	var st Stmt
	var err error

	switch kind {
	case StmtInvalid:
		return st, l.errAt(0, diag.SynUnknownStatement, "unknown statement %q", l.toks[0].text)

	case StmtPolicy:
		if err = arity(l, kind, 2, 2); err != nil {
			return st, err
		}
		for _, prev := range u.Stmts {
			if prev.Kind.binds() {
				return st, l.errAt(0, diag.SynPolicyPosition, "policy must precede all binding statements")
			}
		}
		if st.Policy, err = deduce.ParsePolicy(l.toks[1].text); err != nil {
			return st, l.errAt(1, diag.SynUnknownPolicy, "%v", err)
		}

	case StmtPush:
		if err = arity(l, kind, 2, 3); err != nil {
			return st, err
		}
		if st.Mode, err = mode.Parse(l.toks[1].text); err != nil {
			return st, l.errAt(1, diag.SynUnknownMode, "%v", err)
		}
		st.Region = mode.RegionExplicit
		if len(l.toks) == 3 {
			if l.toks[2].text != "file" {
				return st, l.errAt(2, diag.SynBadArity, "expected 'file', got %q", l.toks[2].text)
			}
			st.Region = mode.RegionFile
		}

	case StmtPop:
		if err = arity(l, kind, 1, 1); err != nil {
			return st, err
		}

	case StmtDeclare, StmtDefine:
		if err = arity(l, kind, 2, 2); err != nil {
			return st, err
		}
		if !isIdent(l.toks[1].text) {
			return st, l.errAt(1, diag.SynExpectIdentifier, "expected function name, got %q", l.toks[1].text)
		}
		st.Name = l.toks[1].text

	case StmtBind, StmtDeduce:
		if err = arity(l, kind, 4, -1); err != nil {
			return st, err
		}
		f, err := binding.ParseForm(l.toks[1].text)
		if err != nil {
			return st, l.errAt(1, diag.SynUnknownForm, "%v", err)
		}
		if kind == StmtBind && !f.IsConcrete() {
			return st, l.errAt(1, diag.SynUnknownForm, "bind needs a concrete form, %s is deduced (use deduce)", f)
		}
		if kind == StmtDeduce && !f.IsDeduced() {
			return st, l.errAt(1, diag.SynUnknownForm, "deduce needs a deduced form, %s is concrete (use bind)", f)
		}
		c, err := binding.ParseContext(l.toks[2].text)
		if err != nil {
			return st, l.errAt(2, diag.SynUnknownContext, "%v", err)
		}
		if st, err = l.restExpr(3); err != nil {
			return st, err
		}
		st.Forms = []binding.Form{f}
		st.FormSpan = l.tokSpan(1)
		st.Context = c

	case StmtCond:
		if err = arity(l, kind, 5, -1); err != nil {
			return st, err
		}
		intent, err := lifetime.ParseIntent(l.toks[1].text)
		if err != nil {
			return st, l.errAt(1, diag.SynUnknownIntent, "%v", err)
		}
		i := 2
		mutable := false
		if l.toks[i].text == "mut" {
			mutable = true
			i++
		}
		if i+2 >= len(l.toks) || l.toks[i+1].text != "=" {
			return st, l.errAt(i, diag.SynBadArity, "expected BASE = EXPR")
		}
		base := l.toks[i].text
		if base != "_" && !isIdent(base) {
			return st, l.errAt(i, diag.SynExpectIdentifier, "expected base type, got %q", base)
		}
		if st, err = l.restExpr(i + 2); err != nil {
			return st, err
		}
		st.Intent = intent
		st.Mutable = mutable
		if base != "_" {
			st.Base = base
		}

	case StmtCall:
		if err = arity(l, kind, 4, -1); err != nil {
			return st, err
		}
		if !isIdent(l.toks[1].text) {
			return st, l.errAt(1, diag.SynExpectIdentifier, "expected function name, got %q", l.toks[1].text)
		}
		var forms []binding.Form
		for _, s := range strings.Split(l.toks[2].text, ",") {
			f, err := binding.ParseForm(s)
			if err != nil {
				return st, l.errAt(2, diag.SynUnknownForm, "%v", err)
			}
			forms = append(forms, f)
		}
		if st, err = l.restExpr(3); err != nil {
			return st, err
		}
		st.Name = l.toks[1].text
		st.Forms = forms
		st.FormSpan = l.tokSpan(2)
		st.Context = binding.ArgumentBinding

	case StmtForward:
		if err = arity(l, kind, 3, -1); err != nil {
			return st, err
		}
		depth, err := strconv.Atoi(l.toks[1].text)
		if err != nil || depth < 1 {
			return st, l.errAt(1, diag.SynBadArity, "forward depth must be a positive integer, got %q", l.toks[1].text)
		}
		if depth > MaxForwardDepth {
			return st, l.errAt(1, diag.SynBadArity, "forward depth %d exceeds the limit of %d frames", depth, MaxForwardDepth)
		}
		if st, err = l.restExpr(2); err != nil {
			return st, err
		}
		st.Depth = depth
		st.Forms = []binding.Form{binding.RestrictedMutable}
		st.Context = binding.ArgumentBinding
	}

	st.Kind = kind
	st.Span = l.whole()
	return st, nil
}
