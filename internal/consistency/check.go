// Package consistency verifies that a function's declaration and its
// definition were analyzed under the same binding mode.
package consistency

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"refbind/internal/mode"
	"refbind/internal/source"
)

// MismatchError is returned by Check when the modes differ.
type MismatchError struct {
	Decl mode.Mode
	Defn mode.Mode
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("declared under %s mode but defined under %s mode", e.Decl, e.Defn)
}

// Check compares the mode of a declaration with the mode of its definition.
// Mixed modes are never reconciled by picking one side.
func Check(decl, defn mode.Mode) error {
	if decl != defn {
		return &MismatchError{Decl: decl, Defn: defn}
	}
	return nil
}

// Role tells declarations from definitions.
type Role uint8

const (
	RoleDeclaration Role = iota
	RoleDefinition
)

func (r Role) String() string {
	if r == RoleDefinition {
		return "definition"
	}
	return "declaration"
}

// Record associates a function with the mode active where it was seen.
type Record struct {
	Func string
	Mode mode.Mode
	Span source.Span
	Role Role
}

// Mismatch is a failed comparison; it is reported at Defn.Span and
// refers back to Decl.Span.
type Mismatch struct {
	Decl Record
	Defn Record
	Err  *MismatchError
}

type entry struct {
	decls []Record
	defn  *Record
}

// Checker keeps function mode records for one unit.
// It is not safe for concurrent use; every unit owns its own Checker.
type Checker struct {
	funcs map[string]*entry
}

func NewChecker() *Checker {
	return &Checker{funcs: make(map[string]*entry)}
}

// Key normalizes a function identity: surrounding space is dropped and the
// name is put in NFC so visually identical spellings compare equal.
func Key(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func (c *Checker) lookup(name string) *entry {
	k := Key(name)
	e, ok := c.funcs[k]
	if !ok {
		e = &entry{}
		c.funcs[k] = e
	}
	return e
}

// Declare records a declaration. Every declaration is kept; one seen after
// the definition is compared immediately.
func (c *Checker) Declare(name string, m mode.Mode, span source.Span) *Mismatch {
	e := c.lookup(name)
	decl := Record{Func: Key(name), Mode: m, Span: span, Role: RoleDeclaration}
	e.decls = append(e.decls, decl)
	if e.defn == nil {
		return nil
	}
	return compare(decl, *e.defn)
}

// Define records the definition and compares it with every declaration seen
// so far. Only the first definition of a function counts.
func (c *Checker) Define(name string, m mode.Mode, span source.Span) []Mismatch {
	e := c.lookup(name)
	if e.defn != nil {
		return nil
	}
	e.defn = &Record{Func: Key(name), Mode: m, Span: span, Role: RoleDefinition}
	var out []Mismatch
	for _, decl := range e.decls {
		if mm := compare(decl, *e.defn); mm != nil {
			out = append(out, *mm)
		}
	}
	return out
}

func compare(decl, defn Record) *Mismatch {
	if err := Check(decl.Mode, defn.Mode); err != nil {
		mm, _ := err.(*MismatchError)
		return &Mismatch{Decl: decl, Defn: defn, Err: mm}
	}
	return nil
}

// Records returns every record, ordered by position.
func (c *Checker) Records() []Record {
	out := make([]Record, 0, len(c.funcs)*2)
	for _, e := range c.funcs {
		out = append(out, e.decls...)
		if e.defn != nil {
			out = append(out, *e.defn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Func < out[j].Func
	})
	return out
}
