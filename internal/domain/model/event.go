// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/posematch/internal/domain/skeleton"
)

// EventKind names a routine progress event.
type EventKind string

// Event kinds published for sessions.
const (
	KindTargetReached    EventKind = "target_reached"
	KindSequenceComplete EventKind = "sequence_complete"
	KindSessionReset     EventKind = "session_reset"
)

// Frame is one input skeleton submitted for a session.
type Frame struct {
	SessionID string          // owning session
	FrameID   string          // client id used for dedupe, may be empty
	Record    skeleton.Record // observed pose
	TS        time.Time       // receive time
}

// MotionEvent is a progress event of one session. Index/Label name the step
// the event is about; NextIndex/NextLabel the step now awaited.
type MotionEvent struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Kind      EventKind `json:"kind" db:"kind"`
	Index     int       `json:"index" db:"step_index"`
	Label     string    `json:"label,omitempty" db:"label"`
	Score     float64   `json:"score" db:"score"`
	NextIndex int       `json:"next_index" db:"next_index"`
	NextLabel string    `json:"next_label,omitempty" db:"next_label"`
	TS        time.Time `json:"ts" db:"ts"`
}
