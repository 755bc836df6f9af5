package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Unit script syntax
	SynInfo              Code = 2000
	SynUnknownStatement  Code = 2001
	SynBadArity          Code = 2002
	SynUnknownMode       Code = 2003
	SynUnknownForm       Code = 2004
	SynUnknownContext    Code = 2005
	SynBadExpr           Code = 2006
	SynUnknownIntent     Code = 2007
	SynUnknownPolicy     Code = 2008
	SynPolicyPosition    Code = 2009
	SynExpectIdentifier  Code = 2010
	SynUnclosedParen     Code = 2011
	SynUnknownExprOption Code = 2012

	// Binding analysis
	SemaInfo                          Code = 3000
	SemaBindingForbidden              Code = 3001
	SemaModeMismatch                  Code = 3002
	SemaUnbalancedStack               Code = 3003
	SemaAmbiguousTemporaryPreference  Code = 3004
	SemaDeductionFailed               Code = 3005
	SemaInvariantViolation            Code = 3006
	SemaConditionalBinding            Code = 3007
	SemaNoViableCandidate             Code = 3008
	SemaRestrictedFlexibleVariableUse Code = 3009

	// Ошибки I/O
	IOLoadFileError Code = 4001

	// Configuration
	CfgInfo             Code = 5000
	CfgParseError       Code = 5001
	CfgUnknownPolicy    Code = 5002
	CfgUnknownSeverity  Code = 5003
	CfgRulesetMismatch  Code = 5004
	CfgBadRulesetSyntax Code = 5005

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:                       "Unknown error",
	SynInfo:                           "Unit script information",
	SynUnknownStatement:               "Unknown statement",
	SynBadArity:                       "Wrong number of operands",
	SynUnknownMode:                    "Unknown binding mode",
	SynUnknownForm:                    "Unknown reference form",
	SynUnknownContext:                 "Unknown binding context",
	SynBadExpr:                        "Malformed expression descriptor",
	SynUnknownIntent:                  "Unknown declarator intent",
	SynUnknownPolicy:                  "Unknown deduction policy",
	SynPolicyPosition:                 "Policy must precede all binding statements",
	SynExpectIdentifier:               "Expect identifier",
	SynUnclosedParen:                  "Unclosed parenthesis",
	SynUnknownExprOption:              "Unknown expression option",
	SemaInfo:                          "Binding analysis information",
	SemaBindingForbidden:              "Binding forbidden",
	SemaModeMismatch:                  "Binding mode mismatch between declaration and definition",
	SemaUnbalancedStack:               "Unbalanced binding mode stack",
	SemaAmbiguousTemporaryPreference:  "Direct binding preferred over temporary",
	SemaDeductionFailed:               "Deduction failed",
	SemaInvariantViolation:            "Internal invariant violation",
	SemaConditionalBinding:            "Conditional binding resolved",
	SemaNoViableCandidate:             "No viable binding candidate",
	SemaRestrictedFlexibleVariableUse: "restricted-flex variable binding (removal candidate)",
	IOLoadFileError:                   "Failed to load unit",
	CfgInfo:                           "Configuration information",
	CfgParseError:                     "Malformed configuration",
	CfgUnknownPolicy:                  "Unknown deduction policy in configuration",
	CfgUnknownSeverity:                "Unknown severity in configuration",
	CfgRulesetMismatch:                "Ruleset version does not satisfy configuration",
	CfgBadRulesetSyntax:               "Malformed ruleset constraint",
	ObsInfo:                           "Observability information",
	ObsTimings:                        "Pipeline timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("CFG%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
