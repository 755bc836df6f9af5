package analysis

import (
	"refbind/internal/deduce"
	"refbind/internal/diag"
)

// Options configure one analysis pass.
type Options struct {
	// Policy is used when the unit carries no policy statement.
	Policy deduce.Policy
	// ForcePolicy makes Policy win over the unit's own policy statement.
	ForcePolicy bool

	// Severities of an unmatched push at end of file.
	FileRegionSeverity     diag.Severity
	ExplicitRegionSeverity diag.Severity

	// Explain reports an info diagnostic for every resolved binding site.
	Explain bool
	// FlagRemovalCandidates reports allowed restricted-flex variable
	// bindings, whose rule may be withdrawn.
	FlagRemovalCandidates bool
	// CheckInvariants validates each verdict and the unit's spans; a
	// violation stops the unit.
	CheckInvariants bool
}

// DefaultOptions: universal policy, warning for file regions, error for
// explicit ones, invariant checks on.
func DefaultOptions() Options {
	return Options{
		Policy:                 deduce.UniversalPolicy,
		FileRegionSeverity:     diag.SevWarning,
		ExplicitRegionSeverity: diag.SevError,
		CheckInvariants:        true,
	}
}
