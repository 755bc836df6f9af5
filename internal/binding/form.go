package binding

import (
	"fmt"
	"strings"
)

// Form is the declared shape of a binding target.
type Form uint8

const (
	FormInvalid Form = iota

	// Concrete forms.
	PersistentMutable   // T&
	PersistentImmutable // T const&
	RestrictedMutable   // T&&
	RestrictedFlexible  // binds everything, weakest guarantee

	// Deduced parameter forms.
	DeducedFromExpiring
	DeducedCapture
	DeducedPersistentImmutable
	DeducedPersistentMutable

	// Deduced variable (auto-style) forms.
	AutoUniversal
	AutoPersistentImmutable
	AutoPersistentMutable
)

// ConcreteForms lists the four concrete forms in table order.
var ConcreteForms = [...]Form{PersistentMutable, PersistentImmutable, RestrictedMutable, RestrictedFlexible}

var formNames = [...]string{
	FormInvalid:                "invalid",
	PersistentMutable:          "persistent-mut",
	PersistentImmutable:        "persistent-const",
	RestrictedMutable:          "restricted-mut",
	RestrictedFlexible:         "restricted-flex",
	DeducedFromExpiring:        "deduced-expiring",
	DeducedCapture:             "deduced-capture",
	DeducedPersistentImmutable: "deduced-persistent-const",
	DeducedPersistentMutable:   "deduced-persistent-mut",
	AutoUniversal:              "auto-universal",
	AutoPersistentImmutable:    "auto-persistent-const",
	AutoPersistentMutable:      "auto-persistent-mut",
}

func (f Form) String() string {
	if int(f) < len(formNames) {
		return formNames[f]
	}
	return formNames[FormInvalid]
}

// ParseForm maps a spelling produced by String back to a Form.
func ParseForm(s string) (Form, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f := PersistentMutable; int(f) < len(formNames); f++ {
		if formNames[f] == s {
			return f, nil
		}
	}
	return FormInvalid, fmt.Errorf("unknown reference form %q", s)
}

// IsConcrete reports whether f is one of the four concrete forms.
func (f Form) IsConcrete() bool {
	return f >= PersistentMutable && f <= RestrictedFlexible
}

// IsDeduced reports whether f needs the deduction engine (auto forms included).
func (f Form) IsDeduced() bool {
	return f >= DeducedFromExpiring && f <= AutoPersistentMutable
}

// IsAuto reports whether f is a deduced variable form.
func (f Form) IsAuto() bool {
	return f >= AutoUniversal && f <= AutoPersistentMutable
}

// Context is where the binding happens.
type Context uint8

const (
	ArgumentBinding Context = iota
	VariableInit
	ConditionalBindingInit
)

// Contexts lists all contexts in table order.
var Contexts = [...]Context{ArgumentBinding, VariableInit, ConditionalBindingInit}

func (c Context) String() string {
	switch c {
	case ArgumentBinding:
		return "arg"
	case VariableInit:
		return "var"
	case ConditionalBindingInit:
		return "cond"
	}
	return "unknown"
}

// ParseContext accepts arg|var|cond and the long names.
func ParseContext(s string) (Context, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arg", "argument":
		return ArgumentBinding, nil
	case "var", "variable":
		return VariableInit, nil
	case "cond", "conditional":
		return ConditionalBindingInit, nil
	}
	return ArgumentBinding, fmt.Errorf("unknown binding context %q", s)
}
