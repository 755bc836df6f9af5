// Package mode tracks which binding rule set is active at each lexical
// point of a translation unit.
//
// A Stack is owned by exactly one analysis pass. There is no process-wide
// current mode: every read goes through Stack.Current.
package mode

import (
	"fmt"
	"strings"

	"refbind/internal/source"
)

// Mode is a binding rule set.
type Mode uint8

const (
	// Legacy reproduces the current binding rules.
	Legacy Mode = iota
	// Proposed applies the restricted binding rules.
	Proposed
)

// Default is the mode in effect before any push.
const Default = Legacy

func (m Mode) String() string {
	switch m {
	case Legacy:
		return "legacy"
	case Proposed:
		return "proposed"
	}
	return "unknown"
}

// Parse accepts legacy|proposed.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy":
		return Legacy, nil
	case "proposed":
		return Proposed, nil
	}
	return Default, fmt.Errorf("invalid binding mode: %q (expected: legacy|proposed)", s)
}

// Region tells how a pushed mode was introduced.
type Region uint8

const (
	// RegionExplicit is a push written out by the user; a missing pop is an error.
	RegionExplicit Region = iota
	// RegionFile is an implicit file-scoped region; a missing pop is a warning.
	RegionFile
)

func (r Region) String() string {
	if r == RegionFile {
		return "file"
	}
	return "explicit"
}

// EventKind distinguishes directive events.
type EventKind uint8

const (
	EventPush EventKind = iota + 1
	EventPop
)

// Event is one parsed directive.
type Event struct {
	Kind   EventKind
	Mode   Mode // push only
	Region Region
	Span   source.Span
}
