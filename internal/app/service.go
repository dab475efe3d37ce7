// Package service wires the pose library, the routine and the sessions
// walking it into the operations served by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/posematch/internal/adapters/mq/publisher"
	"github.com/okian/posematch/internal/adapters/mq/queue"
	"github.com/okian/posematch/internal/adapters/mq/worker"
	"github.com/okian/posematch/internal/adapters/repository"
	"github.com/okian/posematch/internal/domain/dedupe"
	"github.com/okian/posematch/internal/domain/library"
	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/internal/domain/scoring"
	"github.com/okian/posematch/internal/domain/sequence"
	"github.com/okian/posematch/internal/domain/skeleton"
	"github.com/okian/posematch/pkg/logger"
	"github.com/okian/posematch/pkg/metrics"
)

const (
	defaultLibraryThreshold  = 0.2
	defaultSequenceThreshold = 0.25
	defaultQueueSize         = 1024
	defaultDedupeSize        = 50000
	defaultSessionTTL        = 15 * time.Minute
	defaultHistoryLimit      = 100
)

// Scorer computes the dissimilarity between two records.
type Scorer interface {
	Score(a, b skeleton.Record) float64
}

// HistoryReader lists the newest limit stored events of a session, oldest
// first.
type HistoryReader interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]model.MotionEvent, error)
}

// MatchResult is the best library entry for an input and whether it beats
// the library threshold.
type MatchResult struct {
	library.Match
	Threshold float64 `json:"threshold"`
	Matched   bool    `json:"matched"`
}

// FeedResult reports what one frame did to a session.
type FeedResult struct {
	SessionID string              `json:"session_id"`
	FrameID   string              `json:"frame_id,omitempty"`
	Outcome   sequence.Outcome    `json:"outcome"`
	Score     float64             `json:"score"`
	Duplicate bool                `json:"duplicate"`
	Progress  sequence.Snapshot   `json:"progress"`
	Events    []model.MotionEvent `json:"events,omitempty"`
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	ID       string            `json:"id"`
	Created  time.Time         `json:"created"`
	LastSeen time.Time         `json:"last_seen"`
	Frames   int64             `json:"frames"`
	Progress sequence.Snapshot `json:"progress"`
}

// runtimeState holds what Start builds. It is swapped as a whole so workers
// draining during Stop never need the service lock.
type runtimeState struct {
	sessions *repository.MemoryStore
	deduper  dedupe.Deduper
	pool     *worker.Pool
}

// Service owns the library, the routine, and the sessions walking it.
type Service struct {
	mu sync.RWMutex

	library  *library.Library
	sequence *library.Sequence
	scorer   Scorer
	searcher *library.Searcher

	publisher publisher.Publisher
	history   HistoryReader

	libraryThreshold  float64
	sequenceThreshold float64
	parallelSearch    bool
	searchWorkers     int
	workerCount       int
	queueSize         int
	dedupeSize        int
	sessionTTL        time.Duration
	now               func() time.Time

	rt     *runtimeState
	logger logger.Logger
}

// New constructs a Service. The library and the routine default to empty.
func New(opts ...Option) *Service {
	s := &Service{
		library:           library.NewLibrary(nil),
		sequence:          library.NewSequence(nil),
		libraryThreshold:  defaultLibraryThreshold,
		sequenceThreshold: defaultSequenceThreshold,
		workerCount:       runtime.NumCPU(),
		queueSize:         defaultQueueSize,
		dedupeSize:        defaultDedupeSize,
		sessionTTL:        defaultSessionTTL,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.scorer == nil {
		s.scorer = scoring.New()
	}
	if s.publisher == nil {
		s.publisher = publisher.NewLog(s.logger.Named("events"))
	}

	var searchOpts []library.SearchOption
	if s.parallelSearch {
		searchOpts = append(searchOpts, library.WithParallel(s.searchWorkers))
	}
	s.searcher = library.NewSearcher(s.library, s.scorer, searchOpts...)

	return s
}

// Start builds the session store, the deduper and the worker pool. Workers
// and the expiry sweeper run until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rt != nil {
		return nil
	}

	s.logger.Info(ctx, "starting posematch service...")

	rt := &runtimeState{
		sessions: repository.NewMemoryStore(
			repository.WithTTL(s.sessionTTL),
			repository.WithClock(s.now),
			repository.WithLogger(s.logger.Named("sessions")),
		),
		deduper: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize)),
	}
	rt.pool = worker.NewPool(s.workerCount, s.queueSize,
		worker.ProcessorFunc(func(ctx context.Context, f worker.Frame) error {
			return s.process(ctx, rt, f)
		}),
		worker.WithPoolLogger(s.logger.Named("workers")),
	)

	rt.sessions.Start(ctx)
	rt.pool.Start(ctx)
	s.rt = rt

	metrics.UpdateLibrarySize(s.library.Len())
	metrics.UpdateSequenceLength(s.sequence.Len())

	s.logger.Info(ctx, "posematch service started",
		logger.Int("library", s.library.Len()),
		logger.Int("steps", s.sequence.Len()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("sessionTTL", s.sessionTTL),
	)
	return nil
}

// Stop drains the worker queues and stops the expiry sweeper. The publisher
// belongs to the caller and is left open.
func (s *Service) Stop() {
	s.mu.Lock()
	rt := s.rt
	s.rt = nil
	s.mu.Unlock()

	if rt == nil {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping posematch service...")

	if err := rt.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}
	rt.sessions.Stop()
	metrics.UpdateActiveSessions(0)

	s.logger.Info(ctx, "posematch service stopped")
}

func (s *Service) running() (*runtimeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rt == nil {
		return nil, ErrNotStarted
	}
	return s.rt, nil
}

// Match returns the library entry closest to rec. It works without Start.
func (s *Service) Match(ctx context.Context, rec skeleton.Record) (MatchResult, error) {
	m, err := s.searcher.Best(ctx, rec)
	if err != nil {
		return MatchResult{Threshold: s.libraryThreshold}, fmt.Errorf("match: %w", err)
	}
	return MatchResult{
		Match:     m,
		Threshold: s.libraryThreshold,
		Matched:   scoring.IsMatch(m.Score, s.libraryThreshold),
	}, nil
}

// CreateSession starts a new session at the first step of the routine.
func (s *Service) CreateSession(ctx context.Context) (SessionInfo, error) {
	rt, err := s.running()
	if err != nil {
		return SessionInfo{}, err
	}

	m := sequence.NewMatcher(s.sequence, s.scorer, sequence.WithThreshold(s.sequenceThreshold))
	sess := repository.NewSession(uuid.NewString(), m, s.now())
	if err := rt.sessions.Put(ctx, sess); err != nil {
		return SessionInfo{}, fmt.Errorf("create session: %w", err)
	}

	s.logger.Debug(ctx, "session created", logger.String("session", sess.ID))
	return info(sess), nil
}

// Session returns the state of session id.
func (s *Service) Session(ctx context.Context, id string) (SessionInfo, error) {
	rt, err := s.running()
	if err != nil {
		return SessionInfo{}, err
	}
	sess, err := lookup(ctx, rt, id)
	if err != nil {
		return SessionInfo{}, err
	}
	return info(sess), nil
}

// Feed applies rec to session id and returns the outcome. A non-empty
// frameID that was already seen for the session is reported as a duplicate
// and not applied.
func (s *Service) Feed(ctx context.Context, id, frameID string, rec skeleton.Record) (FeedResult, error) {
	rt, err := s.running()
	if err != nil {
		return FeedResult{}, err
	}
	sess, err := lookup(ctx, rt, id)
	if err != nil {
		return FeedResult{}, err
	}

	if frameID != "" && rt.deduper.SeenAndRecord(ctx, dedupe.Key(id, frameID)) {
		metrics.RecordFrameDuplicate()
		return FeedResult{
			SessionID: id,
			FrameID:   frameID,
			Outcome:   sequence.Ignored,
			Duplicate: true,
			Progress:  sess.Matcher.Snapshot(),
		}, nil
	}

	res := s.apply(ctx, sess, rec)
	res.FrameID = frameID
	return res, nil
}

// Enqueue submits rec for asynchronous application to session id. Frames of
// one session are applied in submission order. It reports true when the
// frame was a duplicate and was dropped.
func (s *Service) Enqueue(ctx context.Context, id, frameID string, rec skeleton.Record) (bool, error) {
	rt, err := s.running()
	if err != nil {
		return false, err
	}
	if _, err := lookup(ctx, rt, id); err != nil {
		return false, err
	}

	var key string
	if frameID != "" {
		key = dedupe.Key(id, frameID)
		if rt.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordFrameDuplicate()
			s.logger.Debug(ctx, "duplicate frame skipped",
				logger.String("session", id),
				logger.String("frame", frameID),
			)
			return true, nil
		}
	}

	f := model.Frame{SessionID: id, FrameID: frameID, Record: rec, TS: s.now()}
	if err := rt.pool.Submit(ctx, f); err != nil {
		if key != "" {
			rt.deduper.Unrecord(ctx, key)
		}
		metrics.RecordErrorByComponent("service", "enqueue")
		return false, submitError(err)
	}
	return false, nil
}

// submitError maps a pool rejection to a service error. A queue closed by a
// concurrent Stop means the service is no longer running.
func submitError(err error) error {
	if errors.Is(err, queue.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrNotStarted, err)
	}
	return fmt.Errorf("%w: %w", ErrBackpressure, err)
}

// ResetSession rewinds session id to the first step.
func (s *Service) ResetSession(ctx context.Context, id string) (SessionInfo, error) {
	rt, err := s.running()
	if err != nil {
		return SessionInfo{}, err
	}
	sess, err := lookup(ctx, rt, id)
	if err != nil {
		return SessionInfo{}, err
	}

	sess.Matcher.Reset()
	ev := model.MotionEvent{
		ID:        uuid.NewString(),
		SessionID: id,
		Kind:      model.KindSessionReset,
		NextIndex: 0,
		NextLabel: s.sequence.Label(0),
		TS:        s.now(),
	}
	s.emit(ctx, sess, ev)
	return info(sess), nil
}

// DeleteSession removes session id.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	rt, err := s.running()
	if err != nil {
		return err
	}
	if err := rt.sessions.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// History returns the newest limit events of session id, oldest first. With
// a history store the events outlive the session.
func (s *Service) History(ctx context.Context, id string, limit int) ([]model.MotionEvent, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if s.history != nil {
		events, err := s.history.ListBySession(ctx, id, limit)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		return events, nil
	}

	rt, err := s.running()
	if err != nil {
		return nil, err
	}
	sess, err := lookup(ctx, rt, id)
	if err != nil {
		return nil, err
	}
	events := sess.Events()
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	rt, err := s.running()
	stats := map[string]any{
		"started":           err == nil,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"dedupeSize":        s.dedupeSize,
		"librarySize":       s.library.Len(),
		"sequenceLength":    s.sequence.Len(),
		"libraryThreshold":  s.libraryThreshold,
		"sequenceThreshold": s.sequenceThreshold,
	}
	if err != nil {
		return stats
	}

	ctx := context.Background()
	stats["queueLength"] = rt.pool.Len()
	stats["activeSessions"] = rt.sessions.Count(ctx)
	stats["dedupeEntries"] = rt.deduper.Size()
	return stats
}

// Library returns the reference library.
func (s *Service) Library() *library.Library { return s.library }

// Sequence returns the routine.
func (s *Service) Sequence() *library.Sequence { return s.sequence }

func (s *Service) process(ctx context.Context, rt *runtimeState, f worker.Frame) error { //nolint:gocritic // hugeParam: frames travel by value
	sess, err := lookup(ctx, rt, f.SessionID)
	if err != nil {
		return fmt.Errorf("frame %s: %w", f.FrameID, err)
	}
	s.apply(ctx, sess, f.Record)
	return nil
}

// apply feeds rec to the session matcher and publishes the transitions.
func (s *Service) apply(ctx context.Context, sess *repository.Session, rec skeleton.Record) FeedResult {
	start := time.Now()
	res := sess.Matcher.Feed(rec)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()))
	metrics.RecordFrameScored(string(res.Outcome))

	now := s.now()
	sess.Touch(now)

	out := FeedResult{
		SessionID: sess.ID,
		Outcome:   res.Outcome,
		Score:     res.Score,
		Progress:  sess.Matcher.Snapshot(),
	}
	for _, e := range res.Events {
		switch e.Kind {
		case sequence.TargetReached:
			metrics.RecordTargetReached()
		case sequence.SequenceComplete:
			metrics.RecordSequenceCompleted()
		}
		ev := model.MotionEvent{
			ID:        uuid.NewString(),
			SessionID: sess.ID,
			Kind:      model.EventKind(e.Kind),
			Index:     e.Index,
			Label:     e.Label,
			Score:     e.Score,
			NextIndex: e.NextIndex,
			NextLabel: e.NextLabel,
			TS:        now,
		}
		s.emit(ctx, sess, ev)
		out.Events = append(out.Events, ev)
	}
	return out
}

func (s *Service) emit(ctx context.Context, sess *repository.Session, ev model.MotionEvent) { //nolint:gocritic // hugeParam: events travel by value
	sess.AddEvent(ev)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		metrics.RecordErrorByComponent("service", "publish")
		s.logger.Error(ctx, "failed to publish motion event",
			logger.String("session", ev.SessionID),
			logger.String("kind", string(ev.Kind)),
			logger.Error(err),
		)
	}
}

func lookup(ctx context.Context, rt *runtimeState, id string) (*repository.Session, error) {
	sess, err := rt.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return sess, nil
}

func info(sess *repository.Session) SessionInfo {
	return SessionInfo{
		ID:       sess.ID,
		Created:  sess.Created,
		LastSeen: sess.LastSeen(),
		Frames:   sess.Frames(),
		Progress: sess.Matcher.Snapshot(),
	}
}
