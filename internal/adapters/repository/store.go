// Package repository stores matching sessions and their progress history.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/internal/domain/sequence"
)

// maxRecentEvents bounds the events a session keeps in memory.
const maxRecentEvents = 100

// Session is one performer working through the routine. The matcher owns
// the cursor; the session only tracks activity.
type Session struct {
	ID      string
	Matcher *sequence.Matcher
	Created time.Time

	mu       sync.Mutex
	lastSeen time.Time
	frames   int64
	events   []model.MotionEvent
}

// NewSession creates a session created and last seen at now.
func NewSession(id string, m *sequence.Matcher, now time.Time) *Session {
	return &Session{ID: id, Matcher: m, Created: now, lastSeen: now}
}

// Touch records activity at now and counts one frame.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.frames++
	s.mu.Unlock()
}

// LastSeen returns the time of the latest activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Frames returns the number of frames applied to the session.
func (s *Session) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// AddEvent appends ev to the session's recent events, dropping the oldest
// beyond the bound.
func (s *Session) AddEvent(ev model.MotionEvent) { //nolint:gocritic // hugeParam: events travel by value
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if over := len(s.events) - maxRecentEvents; over > 0 {
		s.events = append([]model.MotionEvent(nil), s.events[over:]...)
	}
}

// Events returns the recent events, oldest first.
func (s *Session) Events() []model.MotionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.MotionEvent(nil), s.events...)
}

// Store keeps sessions by id.
type Store interface {
	// Put adds a session. It returns ErrExists if the id is taken.
	Put(ctx context.Context, s *Session) error

	// Get returns the session with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. It returns ErrNotFound if it was absent.
	Delete(ctx context.Context, id string) error

	// Count returns the number of live sessions.
	Count(ctx context.Context) int

	// Expire removes sessions idle since before cutoff and returns their ids.
	Expire(ctx context.Context, cutoff time.Time) []string
}
