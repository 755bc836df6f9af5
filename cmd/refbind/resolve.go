package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"refbind/internal/binding"
	"refbind/internal/deduce"
	"refbind/internal/mode"
	"refbind/internal/ui"
	"refbind/internal/unit"
	"refbind/internal/valuecat"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve EXPR",
	Short: "Resolve one binding of a concrete form",
	Long: `Resolve classifies EXPR and asks the resolver whether a reference of the
given form may bind to it in the given context.

  refbind resolve --mode proposed --form persistent-const --context var 'temp:Widget'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := readQuery(cmd, args[0])
		if err != nil {
			return err
		}
		if !q.Form.IsConcrete() {
			return fmt.Errorf("%s is not a concrete form; use refbind deduce", q.Form)
		}
		return printVerdict(cmd, q, verdictReport{Verdict: binding.Resolve(q)})
	},
}

func init() {
	addQueryFlags(resolveCmd)
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "proposed", "binding mode (legacy|proposed)")
	cmd.Flags().String("form", "", "reference form")
	cmd.Flags().String("context", "arg", "binding context (arg|var|cond)")
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	_ = cmd.MarkFlagRequired("form")
}

// readQuery turns flags and the expression descriptor into a query.
func readQuery(cmd *cobra.Command, exprText string) (binding.Query, error) {
	var q binding.Query
	modeFlag, err := cmd.Flags().GetString("mode")
	if err != nil {
		return q, fmt.Errorf("failed to get mode flag: %w", err)
	}
	formFlag, err := cmd.Flags().GetString("form")
	if err != nil {
		return q, fmt.Errorf("failed to get form flag: %w", err)
	}
	contextFlag, err := cmd.Flags().GetString("context")
	if err != nil {
		return q, fmt.Errorf("failed to get context flag: %w", err)
	}

	if q.Mode, err = mode.Parse(modeFlag); err != nil {
		return q, err
	}
	if q.Form, err = binding.ParseForm(formFlag); err != nil {
		return q, err
	}
	if q.Context, err = binding.ParseContext(contextFlag); err != nil {
		return q, err
	}
	d, err := unit.ParseExpr(exprText)
	if err != nil {
		return q, fmt.Errorf("invalid expression %q: %w", exprText, err)
	}
	q.Expr = valuecat.Classify(d)
	q.Site = q.Expr.Scope
	return q, nil
}

// verdictReport is what resolve and deduce print; Deduced is set by deduce.
type verdictReport struct {
	Verdict binding.Verdict
	Deduced *deduce.Result
}

type verdictPayload struct {
	Mode       string `json:"mode"`
	Form       string `json:"form"`
	Context    string `json:"context"`
	Category   string `json:"category"`
	Mutable    bool   `json:"mutable"`
	Type       string `json:"type"`
	Verdict    string `json:"verdict"`
	Owner      string `json:"owner,omitempty"`
	Scope      uint32 `json:"scope,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Deduced    string `json:"deduced,omitempty"`
	Policy     string `json:"policy,omitempty"`
}

func newVerdictPayload(q binding.Query, r verdictReport) verdictPayload {
	v := r.Verdict
	p := verdictPayload{
		Mode:     q.Mode.String(),
		Form:     q.Form.String(),
		Context:  q.Context.String(),
		Category: q.Expr.Category.String(),
		Mutable:  q.Expr.Mutable,
		Type:     q.Expr.Type,
		Verdict:  v.Kind.String(),
	}
	switch v.Kind {
	case binding.AllowedViaTemporary:
		p.Owner = v.Owner.String()
		p.Scope = uint32(v.Scope)
	case binding.Forbidden:
		p.Reason = v.Reason.String()
		p.Suggestion = v.Suggest.String()
	}
	if r.Deduced != nil {
		p.Deduced = r.Deduced.Type.String()
		p.Policy = r.Deduced.Policy.String()
	}
	return p
}

func printVerdict(cmd *cobra.Command, q binding.Query, r verdictReport) error {
	formatFlag, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	payload := newVerdictPayload(q, r)
	switch strings.ToLower(formatFlag) {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case "pretty":
		color, err := useColor(cmd)
		if err != nil {
			return err
		}
		writeVerdictPretty(cmd.OutOrStdout(), q, r, payload, color)
		return nil
	}
	return fmt.Errorf("unsupported format %q (must be pretty or json)", formatFlag)
}

func writeVerdictPretty(w io.Writer, q binding.Query, r verdictReport, p verdictPayload, color bool) {
	fmt.Fprintf(w, "%s %s <- %s (%s mode)\n", p.Form, p.Context, q.Expr, p.Mode)
	if r.Deduced != nil {
		fmt.Fprintf(w, "deduced: %s (%s policy)\n", p.Deduced, p.Policy)
	}
	fmt.Fprintf(w, "verdict: %s\n", ui.Verdict(r.Verdict, color))
	if p.Reason != "" {
		fmt.Fprintf(w, "reason:  %s\n", p.Reason)
	}
	if p.Suggestion != "" {
		fmt.Fprintf(w, "suggest: %s\n", p.Suggestion)
	}
}
