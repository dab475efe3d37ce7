// Package library holds labeled reference skeletons: the unordered Library
// used for nearest-neighbour lookup and the ordered Sequence of a routine.
package library

import "github.com/okian/posematch/internal/domain/skeleton"

// Entry is one labeled reference skeleton.
type Entry struct {
	Label  string          `json:"label"`
	Record skeleton.Record `json:"skeleton"`
}

// Library is a read-only collection of entries. Iteration order carries no
// meaning.
type Library struct {
	entries []Entry
}

// NewLibrary copies entries into a Library.
func NewLibrary(entries []Entry) *Library {
	return &Library{entries: append([]Entry(nil), entries...)}
}

// Len returns the number of entries.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Entries returns a copy of the entries.
func (l *Library) Entries() []Entry {
	if l == nil {
		return nil
	}
	return append([]Entry(nil), l.entries...)
}

// Labels returns the entry labels.
func (l *Library) Labels() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Label
	}
	return out
}

// Sequence is an ordered, immutable list of target poses.
type Sequence struct {
	steps []Entry
}

// NewSequence copies steps into a Sequence, keeping their order.
func NewSequence(steps []Entry) *Sequence {
	return &Sequence{steps: append([]Entry(nil), steps...)}
}

// Len returns the number of steps.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.steps)
}

// At returns step i.
func (s *Sequence) At(i int) (Entry, bool) {
	if s == nil || i < 0 || i >= len(s.steps) {
		return Entry{}, false
	}
	return s.steps[i], true
}

// Label returns the label of step i, or "" when i is out of range.
func (s *Sequence) Label(i int) string {
	e, _ := s.At(i)
	return e.Label
}

// Labels returns the step labels in order.
func (s *Sequence) Labels() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.steps))
	for i, e := range s.steps {
		out[i] = e.Label
	}
	return out
}
