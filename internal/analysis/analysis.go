// Package analysis runs the binding rules over one unit script: it applies
// the unit's events in order, keeps the mode stack and function records,
// and reports every finding through a diag.Reporter.
package analysis

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"fortio.org/safecast"

	"refbind/internal/binding"
	"refbind/internal/consistency"
	"refbind/internal/deduce"
	"refbind/internal/diag"
	"refbind/internal/lifetime"
	"refbind/internal/mode"
	"refbind/internal/source"
	"refbind/internal/testkit"
	"refbind/internal/trace"
	"refbind/internal/unit"
	"refbind/internal/valuecat"
)

// pass is the state of one unit; nothing in it outlives Run.
type pass struct {
	opts    Options
	rep     diag.Reporter
	file    *source.File
	stack   *mode.Stack
	checker *consistency.Checker
	engine  *deduce.Engine
	res     *Result
	tracer  trace.Tracer
	spanID  uint64
	fatal   bool
}

// Run analyzes u. It never fails: every problem becomes a diagnostic and
// Result records how far the unit got. sf may be nil when span checks are
// not wanted.
func Run(ctx context.Context, u *unit.Unit, sf *source.File, opts Options, r diag.Reporter) *Result {
	if r == nil {
		r = diag.NopReporter{}
	}
	policy := opts.Policy
	if u.HasPolicy && !opts.ForcePolicy {
		policy = u.Policy
	}

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeUnit, "analyze:"+u.Path, trace.ParentFromContext(ctx))

	p := &pass{
		opts:    opts,
		rep:     r,
		file:    sf,
		stack:   mode.NewStack(),
		checker: consistency.NewChecker(),
		engine:  deduce.New(policy),
		res:     &Result{Path: u.Path, Policy: policy},
		tracer:  tracer,
		spanID:  span.ID(),
	}

	if opts.CheckInvariants && sf != nil {
		if err := testkit.CheckUnitSpans(u, sf); err != nil {
			p.invariant(source.Span{File: u.File}, err)
		}
	}

	for _, st := range u.Stmts {
		if p.fatal {
			break
		}
		if err := ctx.Err(); err != nil {
			p.res.Aborted = true
			break
		}
		trace.Point(tracer, trace.ScopeEvent, st.Kind.String(), st.Span.String(), p.spanID)
		p.apply(st)
	}

	if !p.res.Aborted {
		p.endOfFile(u)
	}
	p.res.Records = p.checker.Records()

	span.WithExtra("sites", strconv.Itoa(len(p.res.Sites))).
		WithExtra("forbidden", strconv.Itoa(p.res.Counts.Forbidden)).
		End(p.stack.Current().String())
	return p.res
}

func (p *pass) apply(st unit.Stmt) {
	cur := p.stack.Current()
	switch st.Kind {
	case unit.StmtPolicy:
		// taken from the unit before the loop

	case unit.StmtPush, unit.StmtPop:
		ev, _ := st.ModeEvent()
		if err := p.stack.Apply(ev); err != nil {
			p.res.CodegenBlocked = true
			diag.ReportError(p.rep, diag.SemaUnbalancedStack, st.Span,
				fmt.Sprintf("%v; mode reverts to %s", err, mode.Default)).Emit()
		}

	case unit.StmtDeclare:
		p.mismatch(p.checker.Declare(st.Name, cur, st.Span))

	case unit.StmtDefine:
		for _, m := range p.checker.Define(st.Name, cur, st.Span) {
			p.mismatch(&m)
		}

	case unit.StmtBind:
		expr := valuecat.Classify(st.Expr)
		q := p.query(cur, st.Form(), st.Context, expr)
		v := binding.Resolve(q)
		p.site(st, q, v, "", "")
		if !v.OK() {
			p.forbidden(diag.SemaBindingForbidden, st.Span, q, v, "", formEdits(st, v)...)
		} else {
			p.explain(st.Span, q, v, "")
			p.removalCandidate(st.Span, q, v)
		}

	case unit.StmtDeduce:
		expr := valuecat.Classify(st.Expr)
		q := p.query(cur, st.Form(), st.Context, expr)
		out := p.engine.Deduce(q)
		deduced := out.Type.String()
		p.site(st, q, out.Verdict, deduced, "")
		if !out.Verdict.OK() {
			p.forbidden(diag.SemaDeductionFailed, st.Span, q, out.Verdict,
				fmt.Sprintf("deduced %s under %s policy", deduced, out.Policy))
		} else {
			p.explain(st.Span, q, out.Verdict, "deduced "+deduced)
		}

	case unit.StmtCond:
		p.cond(cur, st)

	case unit.StmtCall:
		p.call(cur, st)

	case unit.StmtForward:
		p.forward(cur, st)
	}
}

// query fills Site: the full expression's scope for arguments, the
// declared variable's otherwise. Both come from the expression descriptor.
func (p *pass) query(m mode.Mode, f binding.Form, c binding.Context, e valuecat.Expr) binding.Query {
	return binding.Query{Mode: m, Form: f, Context: c, Expr: e, Site: e.Scope}
}

func (p *pass) site(st unit.Stmt, q binding.Query, v binding.Verdict, deduced, effective string) {
	if p.opts.CheckInvariants {
		if err := testkit.CheckVerdict(v); err != nil {
			p.invariant(st.Span, err)
			return
		}
	}
	p.res.Counts.add(v)
	p.res.Sites = append(p.res.Sites, Site{
		Stmt:      st.Kind,
		Span:      st.Span,
		Mode:      q.Mode,
		Form:      q.Form,
		Context:   q.Context,
		Category:  q.Expr.Category,
		Mutable:   q.Expr.Mutable,
		Verdict:   v,
		Deduced:   deduced,
		Effective: effective,
	})
}

func (p *pass) cond(cur mode.Mode, st unit.Stmt) {
	expr := valuecat.Classify(st.Expr)
	d := lifetime.Declarator{Intent: st.Intent, Base: st.Base, Mutable: st.Mutable, Scope: expr.Scope}
	b := lifetime.Synthesize(cur, d, expr)

	form := b.Form
	if b.Kind == lifetime.Owned {
		form = binding.RestrictedMutable
	}
	q := binding.Query{Mode: cur, Form: form, Context: binding.ConditionalBindingInit, Expr: expr, Site: d.Scope}
	p.site(st, q, b.Verdict, "", b.String())
	if !b.Verdict.OK() {
		p.forbidden(diag.SemaBindingForbidden, st.Span, q, b.Verdict, "conditional declarator "+st.Intent.String())
		return
	}
	if p.opts.Explain {
		diag.ReportInfo(p.rep, diag.SemaConditionalBinding, st.Span,
			fmt.Sprintf("%s initializer resolves to %s", expr.Category, b)).Emit()
	}
}

func (p *pass) call(cur mode.Mode, st unit.Stmt) {
	expr := valuecat.Classify(st.Expr)
	verdicts := make([]binding.Verdict, len(st.Forms))
	queries := make([]binding.Query, len(st.Forms))
	deduced := make([]string, len(st.Forms))
	for i, f := range st.Forms {
		q := p.query(cur, f, binding.ArgumentBinding, expr)
		queries[i] = q
		if f.IsDeduced() {
			out := p.engine.Deduce(q)
			verdicts[i] = out.Verdict
			deduced[i] = out.Type.String()
		} else {
			verdicts[i] = binding.Resolve(q)
		}
	}

	idx, ambiguous := binding.Prefer(verdicts)
	if idx < 0 {
		b := diag.ReportError(p.rep, diag.SemaNoViableCandidate, st.Span,
			fmt.Sprintf("no candidate of %s accepts %s under %s mode", st.Name, expr, cur))
		for i, v := range verdicts {
			b.WithNote(st.Span, fmt.Sprintf("%s: %s", st.Forms[i], v.Reason))
		}
		if len(verdicts) > 0 {
			if s := verdicts[0].Suggest.String(); s != "" {
				b.WithFix(s)
			}
		}
		b.Emit()
		p.site(st, queries[0], verdicts[0], deduced[0], "")
		return
	}

	p.site(st, queries[idx], verdicts[idx], deduced[idx], "")
	if ambiguous {
		b := diag.ReportInfo(p.rep, diag.SemaAmbiguousTemporaryPreference, st.Span,
			fmt.Sprintf("%s: direct binding to %s preferred over a temporary", st.Name, st.Forms[idx]))
		for i, v := range verdicts {
			if v.Kind == binding.AllowedViaTemporary {
				b.WithNote(st.Span, fmt.Sprintf("%s would bind via %s", st.Forms[i], v))
			}
		}
		b.Emit()
	}
}

func (p *pass) forward(cur mode.Mode, st unit.Stmt) {
	expr := valuecat.Classify(st.Expr)
	frames := forwardFrames(expr.Scope, st.Depth)
	chain := lifetime.Forward(cur, expr, frames)
	for i, v := range chain.Verdicts {
		in := expr
		if i > 0 {
			in = valuecat.Expr{Category: valuecat.Expiring, Mutable: true, Type: expr.Type, Scope: frames[i]}
		}
		q := binding.Query{Mode: cur, Form: binding.RestrictedMutable, Context: binding.ArgumentBinding, Expr: in, Site: frames[i]}
		p.site(st, q, v, "", "")
		if !v.OK() {
			p.forbidden(diag.SemaBindingForbidden, st.Span, q, v, fmt.Sprintf("forwarding frame %d of %d", i+1, len(frames)))
		}
	}
	if chain.OK() && p.opts.Explain {
		diag.ReportInfo(p.rep, diag.SemaInfo, st.Span,
			fmt.Sprintf("forwarded through %d frames: %d construction(s), %d move(s)", len(frames), chain.Constructions, chain.Moves)).Emit()
	}
}

// forwardFrames gives frame i the scope base+i, saturating at the largest
// scope. depth is clamped to unit.MaxForwardDepth.
func forwardFrames(base valuecat.ScopeID, depth int) []valuecat.ScopeID {
	depth = min(max(depth, 0), unit.MaxForwardDepth)
	frames := make([]valuecat.ScopeID, depth)
	for i := range frames {
		scope := uint64(base) + uint64(i)
		frames[i] = valuecat.ScopeID(min(scope, math.MaxUint32))
	}
	return frames
}

// forbidden reports a refused binding with form, mode and category, and the
// verdict's suggestion as a fix carrying edits when there are any.
func (p *pass) forbidden(code diag.Code, sp source.Span, q binding.Query, v binding.Verdict, note string, edits ...diag.FixEdit) {
	msg := fmt.Sprintf("cannot bind %s to %s expression of type %s (%s context, %s mode): %s",
		q.Form, q.Expr.Category, q.Expr.Type, q.Context, q.Mode, v.Reason)
	if !q.Expr.Mutable {
		msg = fmt.Sprintf("cannot bind %s to const %s expression of type %s (%s context, %s mode): %s",
			q.Form, q.Expr.Category, q.Expr.Type, q.Context, q.Mode, v.Reason)
	}
	b := diag.ReportError(p.rep, code, sp, msg)
	if note != "" {
		b.WithNote(sp, note)
	}
	if s := v.Suggest.String(); s != "" {
		b.WithFix(s, edits...)
	}
	b.Emit()
}

// formEdits rewrites the form token of a bind statement when the suggestion
// names another concrete form.
func formEdits(st unit.Stmt, v binding.Verdict) []diag.FixEdit {
	if st.Kind != unit.StmtBind || v.Suggest.Alt != binding.AltForm || !v.Suggest.Form.IsConcrete() {
		return nil
	}
	return []diag.FixEdit{{Span: st.FormSpan, NewText: v.Suggest.Form.String()}}
}

// popEdit appends a pop statement at the end of the file.
func (p *pass) popEdit(u *unit.Unit) []diag.FixEdit {
	if p.file == nil {
		return nil
	}
	end, err := safecast.Conv[uint32](len(p.file.Content))
	if err != nil {
		return nil
	}
	text := "pop\n"
	if n := len(p.file.Content); n > 0 && p.file.Content[n-1] != '\n' {
		text = "\n" + text
	}
	return []diag.FixEdit{{Span: source.Span{File: u.File, Start: end, End: end}, NewText: text}}
}

func (p *pass) explain(sp source.Span, q binding.Query, v binding.Verdict, extra string) {
	if !p.opts.Explain {
		return
	}
	msg := fmt.Sprintf("%s ← %s: %s", q.Form, q.Expr, v)
	if extra != "" {
		msg += " (" + extra + ")"
	}
	diag.ReportInfo(p.rep, diag.SemaInfo, sp, msg).Emit()
}

func (p *pass) removalCandidate(sp source.Span, q binding.Query, v binding.Verdict) {
	if !p.opts.FlagRemovalCandidates || q.Form != binding.RestrictedFlexible || q.Context != binding.VariableInit || v.Kind != binding.Allowed {
		return
	}
	diag.ReportInfo(p.rep, diag.SemaRestrictedFlexibleVariableUse, sp,
		"restricted-flex variable binding has no known use case and may be withdrawn").Emit()
}

func (p *pass) mismatch(m *consistency.Mismatch) {
	if m == nil {
		return
	}
	p.res.CodegenBlocked = true
	diag.ReportError(p.rep, diag.SemaModeMismatch, m.Defn.Span,
		fmt.Sprintf("%s: %v", m.Defn.Func, m.Err)).
		WithNote(m.Decl.Span, fmt.Sprintf("declaration analyzed under %s mode", m.Decl.Mode)).
		Emit()
}

func (p *pass) invariant(sp source.Span, err error) {
	p.fatal = true
	p.res.Aborted = true
	p.res.CodegenBlocked = true
	diag.ReportError(p.rep, diag.SemaInvariantViolation, sp, "internal invariant violated: "+err.Error()).Emit()
}

func (p *pass) endOfFile(u *unit.Unit) {
	open := p.stack.AtEOF()
	p.res.Unbalanced = open
	for _, ub := range open {
		sev := p.opts.FileRegionSeverity
		if ub.Region == mode.RegionExplicit {
			sev = p.opts.ExplicitRegionSeverity
		}
		if sev == diag.SevError {
			p.res.CodegenBlocked = true
		}
		diag.NewReportBuilder(p.rep, sev, diag.SemaUnbalancedStack, ub.Span,
			fmt.Sprintf("%v at end of %s", ub.Err(), u.Path)).
			WithFix("add a matching pop", p.popEdit(u)...).
			Emit()
	}
}
