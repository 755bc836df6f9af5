package source

import (
	"fmt"
)

// Span is a byte range inside one unit file.
type Span struct {
	File  FileID
	Start uint32 // в байтах включительно
	End   uint32 // в байтах не включительно
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Cover returns the smallest span containing both s and other.
// Spans from different files are not merged.
func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// Sub narrows s to the [from, to) byte window relative to s.Start,
// clamping to the bounds of s.
func (s Span) Sub(from, to uint32) Span {
	if to < from {
		to = from
	}
	start := s.Start + from
	end := s.Start + to
	if start > s.End {
		start = s.End
	}
	if end > s.End {
		end = s.End
	}
	return Span{File: s.File, Start: start, End: end}
}
