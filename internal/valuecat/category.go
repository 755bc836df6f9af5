// Package valuecat classifies expression descriptors handed over by an
// external type checker into value categories.
//
// Classification is pure and total: every descriptor, including an invalid
// one, maps to exactly one Category.
package valuecat

import (
	"fmt"
	"strings"

	"refbind/internal/source"
)

// Category is the value category of an expression.
type Category uint8

const (
	// Persistent denotes storage expected to outlive the current evaluation (lvalue).
	Persistent Category = iota
	// Expiring denotes storage its owner is about to relinquish (xvalue).
	Expiring
	// Materializing is a temporary without prior identity (prvalue).
	Materializing
)

// Categories lists all categories in table order.
var Categories = [...]Category{Persistent, Expiring, Materializing}

func (c Category) String() string {
	switch c {
	case Persistent:
		return "persistent"
	case Expiring:
		return "expiring"
	case Materializing:
		return "materializing"
	}
	return "unknown"
}

// ParseCategory accepts the lower-case names and the historical lvalue/xvalue/prvalue spellings.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(s) {
	case "persistent", "lvalue":
		return Persistent, nil
	case "expiring", "xvalue":
		return Expiring, nil
	case "materializing", "prvalue":
		return Materializing, nil
	}
	return Persistent, fmt.Errorf("unknown value category %q", s)
}

// ScopeID identifies a lexical scope; NoScope is the unit scope.
type ScopeID uint32

const NoScope ScopeID = 0

// Expr is the classified expression consumed by every other component.
type Expr struct {
	Category Category
	Mutable  bool
	Type     string
	Scope    ScopeID
	Span     source.Span
}

func (e Expr) String() string {
	q := ""
	if !e.Mutable {
		q = " const"
	}
	return fmt.Sprintf("%s %s%s", e.Category, e.Type, q)
}
