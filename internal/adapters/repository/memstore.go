package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/posematch/pkg/logger"
	"github.com/okian/posematch/pkg/metrics"
)

const (
	defaultTTL           = 15 * time.Minute
	defaultSweepInterval = 30 * time.Second
)

// MemoryStore is an in-process Store with idle expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        logger.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMemoryStore creates a MemoryStore. Call Start to run the sweeper.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:      make(map[string]*Session),
		ttl:           defaultTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("sessions")
	}
	return s
}

// Put adds a session.
func (s *MemoryStore) Put(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, sess.ID)
	}
	s.sessions[sess.ID] = sess
	metrics.UpdateActiveSessions(len(s.sessions))
	return nil
}

// Get returns a session by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Delete removes a session by id.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	metrics.UpdateActiveSessions(len(s.sessions))
	return nil
}

// Count returns the number of sessions.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Expire removes sessions last seen before cutoff.
func (s *MemoryStore) Expire(_ context.Context, cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		metrics.UpdateActiveSessions(len(s.sessions))
	}
	return expired
}

// Start runs the expiry sweeper until ctx is done or Stop is called.
func (s *MemoryStore) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	if s.ttl == 0 {
		close(s.done)
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *MemoryStore) sweep(ctx context.Context) {
	expired := s.Expire(ctx, s.now().Add(-s.ttl))
	for _, id := range expired {
		s.logger.Info(ctx, "session expired", logger.String("session", id))
	}
}

// Stop ends the sweeper and waits for it.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}
