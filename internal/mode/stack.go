package mode

import (
	"fmt"

	"refbind/internal/source"
)

type entry struct {
	mode   Mode
	region Region
	span   source.Span
}

// Stack is the per-unit LIFO of pushed modes.
type Stack struct {
	base    Mode
	entries []entry
}

// NewStack returns an empty stack whose Current is Default.
func NewStack() *Stack {
	return &Stack{base: Default}
}

// Push activates m until the matching Pop.
func (s *Stack) Push(m Mode, region Region, span source.Span) {
	s.entries = append(s.entries, entry{mode: m, region: region, span: span})
}

// Pop restores the previously active mode. Popping an empty stack returns
// an *ImbalanceError and leaves the unit default in effect.
func (s *Stack) Pop(span source.Span) error {
	if len(s.entries) == 0 {
		return &ImbalanceError{Kind: ImbalancePopEmpty, Span: span}
	}
	s.entries = s.entries[:len(s.entries)-1]
	return nil
}

// Apply dispatches a directive event.
func (s *Stack) Apply(ev Event) error {
	switch ev.Kind {
	case EventPush:
		s.Push(ev.Mode, ev.Region, ev.Span)
		return nil
	case EventPop:
		return s.Pop(ev.Span)
	}
	return fmt.Errorf("unknown directive event kind %d", ev.Kind)
}

// Current returns the active mode.
func (s *Stack) Current() Mode {
	if len(s.entries) == 0 {
		return s.base
	}
	return s.entries[len(s.entries)-1].mode
}

// Depth is the number of unpopped pushes.
func (s *Stack) Depth() int {
	return len(s.entries)
}

// Unbalanced describes one push left open at end of file.
type Unbalanced struct {
	Mode   Mode
	Region Region
	Span   source.Span
}

// AtEOF lists the open pushes, innermost first, and resets the stack
// to the unit default.
func (s *Stack) AtEOF() []Unbalanced {
	if len(s.entries) == 0 {
		return nil
	}
	out := make([]Unbalanced, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		out = append(out, Unbalanced{Mode: e.mode, Region: e.region, Span: e.span})
	}
	s.entries = s.entries[:0]
	return out
}

// ImbalanceKind distinguishes the two ways a stack can be unbalanced.
type ImbalanceKind uint8

const (
	ImbalancePopEmpty ImbalanceKind = iota + 1
	ImbalanceOpenAtEOF
)

// ImbalanceError is the UnbalancedStack finding.
type ImbalanceError struct {
	Kind   ImbalanceKind
	Mode   Mode
	Region Region
	Span   source.Span
}

func (e *ImbalanceError) Error() string {
	if e.Kind == ImbalancePopEmpty {
		return "pop without matching push"
	}
	return fmt.Sprintf("%s region pushing %s mode is never popped", e.Region, e.Mode)
}

// Err converts an open entry into an error value.
func (u Unbalanced) Err() *ImbalanceError {
	return &ImbalanceError{Kind: ImbalanceOpenAtEOF, Mode: u.Mode, Region: u.Region, Span: u.Span}
}
