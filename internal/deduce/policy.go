// Package deduce resolves generic and auto-style reference forms to a
// concrete type and re-validates the concrete binding through the resolver.
package deduce

import (
	"fmt"
	"strings"
)

// Policy selects how the forwarding form (DeducedFromExpiring) deduces.
// Both policies are supported; a unit picks one through configuration.
type Policy uint8

const (
	// UniversalPolicy deduces as forwarding references do today: one
	// deduced type absorbs both persistent and restricted references.
	UniversalPolicy Policy = iota
	// SplitPolicy deduces a plain type as the immutable-persistent form
	// does, then binds with RestrictedMutable copy semantics.
	SplitPolicy
)

func (p Policy) String() string {
	switch p {
	case UniversalPolicy:
		return "universal"
	case SplitPolicy:
		return "split"
	}
	return "unknown"
}

// ParsePolicy accepts universal|split.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "universal":
		return UniversalPolicy, nil
	case "split":
		return SplitPolicy, nil
	}
	return UniversalPolicy, fmt.Errorf("invalid deduction policy: %q (expected: universal|split)", s)
}
