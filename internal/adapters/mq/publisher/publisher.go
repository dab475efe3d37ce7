// Package publisher delivers session progress events to the collaborators
// that react to them: logs, other processes over Redis, and history storage.
package publisher

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"

	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/pkg/logger"
	"github.com/okian/posematch/pkg/metrics"
)

// Publisher delivers one event.
type Publisher interface {
	Publish(ctx context.Context, ev model.MotionEvent) error
	Close() error
}

// Log writes events to a logger.
type Log struct {
	logger logger.Logger
}

// NewLog creates a log publisher. A nil logger uses the "events" logger.
func NewLog(lg logger.Logger) *Log {
	if lg == nil {
		lg = logger.Named("events")
	}
	return &Log{logger: lg}
}

// Publish logs ev at info level.
func (l *Log) Publish(ctx context.Context, ev model.MotionEvent) error { //nolint:gocritic // hugeParam: events travel by value
	l.logger.Info(ctx, "motion event",
		logger.String("session", ev.SessionID),
		logger.String("kind", string(ev.Kind)),
		logger.Int("index", ev.Index),
		logger.String("label", ev.Label),
		logger.Float64("score", ev.Score),
		logger.Int("next_index", ev.NextIndex),
		logger.String("next_label", ev.NextLabel),
	)
	metrics.RecordPublished("log", "ok")
	return nil
}

// Close is a no-op.
func (l *Log) Close() error { return nil }

// Fanout publishes to every child, continuing past failures.
type Fanout struct {
	children []Publisher
}

// NewFanout combines publishers. Nil entries are dropped.
func NewFanout(children ...Publisher) *Fanout {
	f := &Fanout{}
	for _, c := range children {
		if c != nil {
			f.children = append(f.children, c)
		}
	}
	return f
}

// Publish sends ev to every child and returns their combined errors.
func (f *Fanout) Publish(ctx context.Context, ev model.MotionEvent) error { //nolint:gocritic // hugeParam: events travel by value
	var result *multierror.Error
	for _, c := range f.children {
		if err := c.Publish(ctx, ev); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Close closes every child.
func (f *Fanout) Close() error {
	var errs []error
	for _, c := range f.children {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of children.
func (f *Fanout) Len() int { return len(f.children) }
