// Package sequence implements the state machine that walks a routine of
// target poses in order as live input satisfies them.
package sequence

import (
	"sync"

	"github.com/okian/posematch/internal/domain/library"
	"github.com/okian/posematch/internal/domain/scoring"
	"github.com/okian/posematch/internal/domain/skeleton"
)

const defaultThreshold = 0.25

// Outcome classifies what one input did to the matcher.
type Outcome string

// Feed outcomes.
const (
	Advanced Outcome = "advanced"
	Rejected Outcome = "rejected"
	Ignored  Outcome = "ignored"
)

// EventKind names an event emitted on a transition.
type EventKind string

// Event kinds.
const (
	TargetReached    EventKind = "target_reached"
	SequenceComplete EventKind = "sequence_complete"
)

// Event describes one transition. For TargetReached, Index and Label name the
// step that was just satisfied and NextIndex/NextLabel the step now current
// (NextIndex equals the sequence length once the routine is done). For
// SequenceComplete, Index is the sequence length.
type Event struct {
	Kind      EventKind `json:"kind"`
	Index     int       `json:"index"`
	Label     string    `json:"label,omitempty"`
	Score     float64   `json:"score"`
	NextIndex int       `json:"next_index"`
	NextLabel string    `json:"next_label,omitempty"`
}

// Result reports the effect of one Feed call.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Score   float64 `json:"score"`
	Cursor  int     `json:"cursor"`
	Events  []Event `json:"events,omitempty"`
}

// Scorer computes the dissimilarity between two records.
type Scorer interface {
	Score(a, b skeleton.Record) float64
}

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithThreshold sets the score below which a target counts as reached.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.threshold = threshold
		}
	}
}

// Matcher owns the cursor over a Sequence. All transitions are serialized.
type Matcher struct {
	mu        sync.Mutex
	seq       *library.Sequence
	scorer    Scorer
	threshold float64
	cursor    int
}

// NewMatcher creates a Matcher at cursor 0. An empty sequence starts terminal.
func NewMatcher(seq *library.Sequence, scorer Scorer, opts ...Option) *Matcher {
	m := &Matcher{
		seq:       seq,
		scorer:    scorer,
		threshold: defaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Feed scores input against the current target and advances on a match.
// Only the current target is considered; a strong match for a later step
// does not move the cursor.
func (m *Matcher) Feed(input skeleton.Record) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.seq.Len()
	if m.cursor >= n {
		return Result{Outcome: Ignored, Cursor: m.cursor}
	}

	target, _ := m.seq.At(m.cursor)
	score := m.scorer.Score(input, target.Record)
	if !scoring.IsMatch(score, m.threshold) {
		return Result{Outcome: Rejected, Score: score, Cursor: m.cursor}
	}

	satisfied := m.cursor
	m.cursor++
	events := []Event{{
		Kind:      TargetReached,
		Index:     satisfied,
		Label:     target.Label,
		Score:     score,
		NextIndex: m.cursor,
		NextLabel: m.seq.Label(m.cursor),
	}}
	if m.cursor == n {
		events = append(events, Event{
			Kind:      SequenceComplete,
			Index:     n,
			Score:     score,
			NextIndex: n,
		})
	}
	return Result{Outcome: Advanced, Score: score, Cursor: m.cursor, Events: events}
}

// Reset returns the cursor to the first step.
func (m *Matcher) Reset() {
	m.mu.Lock()
	m.cursor = 0
	m.mu.Unlock()
}

// Cursor returns the index of the next target to satisfy.
func (m *Matcher) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// Len returns the number of steps in the routine.
func (m *Matcher) Len() int { return m.seq.Len() }

// Threshold returns the match threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Done reports whether the routine is complete.
func (m *Matcher) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor >= m.seq.Len()
}

// Current returns the step waiting to be satisfied, or false when done.
func (m *Matcher) Current() (library.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq.At(m.cursor)
}

// Satisfied returns the most recently satisfied step, or false before the
// first match.
func (m *Matcher) Satisfied() (library.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq.At(m.cursor - 1)
}

// Snapshot is a consistent view of the matcher state.
type Snapshot struct {
	Cursor    int    `json:"cursor"`
	Length    int    `json:"length"`
	Done      bool   `json:"done"`
	Current   string `json:"current,omitempty"`
	Satisfied string `json:"satisfied,omitempty"`
}

// Snapshot returns the cursor and surrounding labels under one lock.
func (m *Matcher) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.seq.Len()
	return Snapshot{
		Cursor:    m.cursor,
		Length:    n,
		Done:      m.cursor >= n,
		Current:   m.seq.Label(m.cursor),
		Satisfied: m.seq.Label(m.cursor - 1),
	}
}
