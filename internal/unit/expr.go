package unit

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"refbind/internal/diag"
	"refbind/internal/source"
	"refbind/internal/valuecat"
)

// SyntaxError is a malformed line. Span points at the offending text.
type SyntaxError struct {
	Code diag.Code
	Span source.Span
	Msg  string
}

func (e *SyntaxError) Error() string {
	return e.Msg
}

var returnShapes = map[string]valuecat.ReturnShape{
	"value": valuecat.ReturnValue,
	"ref":   valuecat.ReturnPersistentRef,
	"xref":  valuecat.ReturnExpiringRef,
}

// exprParser is a recursive-descent reader for one expression descriptor.
type exprParser struct {
	src  string
	pos  int
	file source.FileID
	base uint32 // offset of src[0] in the file
}

func (p *exprParser) span(from, to int) source.Span {
	lo, err := safecast.Conv[uint32](from)
	if err != nil {
		lo = 0
	}
	hi, err := safecast.Conv[uint32](to)
	if err != nil {
		hi = lo
	}
	return source.Span{File: p.file, Start: p.base + lo, End: p.base + hi}
}

func (p *exprParser) errorf(code diag.Code, from, to int, format string, args ...any) *SyntaxError {
	if to <= from {
		to = from + 1
	}
	if to > len(p.src) {
		to = len(p.src)
	}
	return &SyntaxError{Code: code, Span: p.span(from, to), Msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

// word reads until a delimiter of the expression grammar.
func (p *exprParser) word(stop string) string {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(stop, rune(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// ParseExpr reads one standalone expression descriptor, as written after
// the form and context of a bind statement.
func ParseExpr(src string) (valuecat.Descriptor, error) {
	return parseExpr(src, 0, 0)
}

func parseExpr(src string, file source.FileID, base uint32) (valuecat.Descriptor, error) {
	p := &exprParser{src: src, file: file, base: base}
	p.skipSpace()
	d, err := p.expr()
	if err != nil {
		return d, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return d, p.errorf(diag.SynBadExpr, p.pos, len(p.src), "unexpected %q after expression", p.src[p.pos:])
	}
	return d, nil
}

func (p *exprParser) expr() (valuecat.Descriptor, error) {
	var d valuecat.Descriptor
	start := p.pos

	name := p.word(" \t(),:")
	kind, ok := valuecat.ExprKindByName(name)
	if !ok {
		return d, p.errorf(diag.SynBadExpr, start, p.pos, "unknown expression kind %q", name)
	}
	d.Kind = kind

	if p.peek() == '(' {
		open := p.pos
		p.pos++
		for {
			p.skipSpace()
			op, err := p.expr()
			if err != nil {
				return d, err
			}
			d.Operands = append(d.Operands, op)
			p.skipSpace()
			if p.peek() == ',' {
				if len(d.Operands) == 2 {
					return d, p.errorf(diag.SynBadExpr, p.pos, p.pos+1, "at most two operands are allowed")
				}
				p.pos++
				continue
			}
			break
		}
		if p.peek() != ')' {
			return d, p.errorf(diag.SynUnclosedParen, open, open+1, "missing ')'")
		}
		p.pos++
	}

	if p.peek() != ':' {
		return d, p.errorf(diag.SynBadExpr, p.pos, p.pos+1, "expected ':TYPE' after %s", kind)
	}
	p.pos++
	typStart := p.pos
	d.Type = p.word(" \t(),")
	if d.Type == "" {
		return d, p.errorf(diag.SynBadExpr, typStart, typStart+1, "missing type")
	}

	for {
		p.skipSpace()
		if c := p.peek(); c == 0 || c == ',' || c == ')' {
			break
		}
		optStart := p.pos
		opt := p.word(" \t(),")
		switch {
		case opt == "const":
			d.Const = true
		case strings.HasPrefix(opt, "scope="):
			n, err := strconv.ParseUint(strings.TrimPrefix(opt, "scope="), 10, 32)
			if err != nil {
				return d, p.errorf(diag.SynBadExpr, optStart, p.pos, "bad scope %q", opt)
			}
			d.Scope = valuecat.ScopeID(n)
		case strings.HasPrefix(opt, "ret="):
			r, ok := returnShapes[strings.TrimPrefix(opt, "ret=")]
			if !ok {
				return d, p.errorf(diag.SynBadExpr, optStart, p.pos, "bad return shape %q (expected: value|ref|xref)", opt)
			}
			d.Return = r
		default:
			return d, p.errorf(diag.SynUnknownExprOption, optStart, p.pos, "unknown expression option %q", opt)
		}
	}
	d.Span = p.span(start, p.pos)
	return d, nil
}

// FormatExpr prints d in the form parseExpr accepts.
func FormatExpr(d valuecat.Descriptor) string {
	var sb strings.Builder
	sb.WriteString(d.Kind.String())
	if len(d.Operands) > 0 {
		sb.WriteByte('(')
		for i, op := range d.Operands {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(FormatExpr(op))
		}
		sb.WriteByte(')')
	}
	sb.WriteByte(':')
	sb.WriteString(d.Type)
	if d.Const {
		sb.WriteString(" const")
	}
	if d.Scope != valuecat.NoScope {
		fmt.Fprintf(&sb, " scope=%d", d.Scope)
	}
	switch d.Return {
	case valuecat.ReturnPersistentRef:
		sb.WriteString(" ret=ref")
	case valuecat.ReturnExpiringRef:
		sb.WriteString(" ret=xref")
	}
	return sb.String()
}
