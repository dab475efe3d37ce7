package replay

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/posematch/internal/adapters/source"
	"github.com/okian/posematch/internal/domain/library"
	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/internal/domain/sequence"
	"github.com/okian/posematch/pkg/logger"
)

const (
	defaultPattern = "*.json"
	defaultTimeout = 10 * time.Second
)

// Reporter receives one report per posted frame.
type Reporter func(FrameReport)

// Run loads the frames under cfg.Dir in path order, creates a session and
// posts every frame to it. Frame ids are the file labels, so replaying the
// same directory into one session is idempotent.
func Run(ctx context.Context, cfg Config, report Reporter) (*Stats, error) { //nolint:gocritic // hugeParam: config is read once
	lg := logger.Named("replay")
	stats := &Stats{StartTime: time.Now()}
	if cfg.Pattern == "" {
		cfg.Pattern = defaultPattern
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if report == nil {
		report = func(FrameReport) {}
	}

	lg.Info(ctx, "starting replay",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("dir", cfg.Dir),
		logger.String("pattern", cfg.Pattern),
		logger.Duration("interval", cfg.Interval),
		logger.Bool("async", cfg.Async),
	)

	// Step 1: Load frames
	res, err := library.NewLoader(
		library.WithPattern(cfg.Pattern),
		library.WithSource("replay"),
	).Load(ctx, os.DirFS(cfg.Dir))
	if err != nil {
		return stats, fmt.Errorf("load frames: %w", err)
	}
	stats.FramesLoaded = len(res.Entries)
	if res.Warnings != nil {
		stats.FramesSkipped = len(res.Warnings.Errors)
	}
	if stats.FramesLoaded == 0 {
		return stats, fmt.Errorf("%w: %s", ErrNoFrames, cfg.Dir)
	}

	// Step 2: Check server health and open a session
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("server health check failed: %w", err)
	}
	sess, err := client.CreateSession(ctx)
	if err != nil {
		return stats, fmt.Errorf("create session: %w", err)
	}
	stats.SessionID = sess.ID

	// Step 3: Post frames in order
	for item := range source.Replay(ctx, res.Entries, cfg.Interval) {
		out, err := client.PostFrame(ctx, sess.ID, item.Name, item.Record, cfg.Async)
		stats.FramesSent++
		fr := FrameReport{
			Name:      item.Name,
			Outcome:   out.Outcome,
			Score:     out.Score,
			Cursor:    out.Progress.Cursor,
			Length:    out.Progress.Length,
			Current:   out.Progress.Current,
			Duplicate: out.Duplicate,
			Events:    out.Events,
			Err:       err,
		}
		tally(stats, fr, cfg.Async)
		report(fr)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	// Step 4: Final state
	final, err := client.Session(ctx, sess.ID)
	if err != nil {
		return stats, fmt.Errorf("fetch session: %w", err)
	}
	stats.Completed = final.Progress.Done
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	lg.Info(ctx, "replay finished",
		logger.String("session", stats.SessionID),
		logger.Int("sent", stats.FramesSent),
		logger.Int("advanced", stats.Advanced),
		logger.Int("failed", stats.Failed),
		logger.Int("targetsReached", stats.TargetsReached),
		logger.Bool("completed", stats.Completed),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func tally(stats *Stats, fr FrameReport, async bool) { //nolint:gocritic // hugeParam: reports travel by value
	switch {
	case fr.Err != nil:
		stats.Failed++
	case fr.Duplicate:
		stats.Duplicate++
	case async:
		stats.Accepted++
	case fr.Outcome == string(sequence.Advanced):
		stats.Advanced++
	case fr.Outcome == string(sequence.Rejected):
		stats.Rejected++
	case fr.Outcome == string(sequence.Ignored):
		stats.Ignored++
	}
	for _, ev := range fr.Events {
		if ev.Kind == string(model.KindTargetReached) {
			stats.TargetsReached++
		}
	}
}
