package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/posematch/internal/adapters/source"
	app "github.com/okian/posematch/internal/app"
	"github.com/okian/posematch/internal/domain/library"
	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/internal/domain/sequence"
	"github.com/okian/posematch/pkg/logger"
)

var (
	errNoSource     = errors.New("exactly one of --watch or --replay is required")
	errEmptyRoutine = errors.New("routine has no steps")
	errNotCompleted = errors.New("routine not completed")
)

func newRoutineCmd(g *globals) *cobra.Command {
	var (
		sequenceDir string
		manifest    string
		watchDir    string
		replayDir   string
		pattern     string
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "routine",
		Short: "Track one session through the routine from a live or recorded frame directory",
		Long: `routine walks a single local session through the configured key poses.

Frames come either from a directory the extractor is writing into (--watch)
or from a directory of recorded frames played back in path order (--replay).
The command returns once the last step is reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (watchDir == "") == (replayDir == "") {
				return errNoSource
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := *g.cfg
			if sequenceDir != "" {
				cfg.SequenceDir = sequenceDir
			}
			if manifest != "" {
				cfg.SequenceManifest = manifest
			}
			seq, err := app.LoadSequence(ctx, &cfg)
			if err != nil {
				return err
			}
			if seq.Len() == 0 {
				return fmt.Errorf("%w: %s", errEmptyRoutine, cfg.SequenceDir)
			}

			p := printer{out: cmd.OutOrStdout()}
			p.step("routine of %d steps: %v", seq.Len(), seq.Labels())

			svc := app.New(append(app.ConfigOptions(&cfg),
				app.WithSequence(seq),
				app.WithScorer(app.NewScorer(&cfg)),
				app.WithSessionTTL(0),
				app.WithLogger(logger.Named("routine")),
			)...)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			sess, err := svc.CreateSession(ctx)
			if err != nil {
				return err
			}

			var items <-chan source.Item
			if watchDir != "" {
				items, err = source.NewWatcher(watchDir,
					source.WithPattern(pattern),
					source.WithLogger(logger.Named("watcher")),
				).Watch(ctx)
				if err != nil {
					return err
				}
				p.step("watching %s", watchDir)
			} else {
				res, err := library.NewLoader(
					library.WithPattern(pattern),
					library.WithSource("routine"),
				).Load(ctx, os.DirFS(replayDir))
				if err != nil {
					return err
				}
				items = source.Replay(ctx, res.Entries, interval)
				p.step("replaying %d frames from %s", len(res.Entries), replayDir)
			}

			for item := range items {
				// A watched file is rewritten in place, so its name does not
				// identify a frame.
				frameID := item.Name
				if watchDir != "" {
					frameID = ""
				}
				res, err := svc.Feed(ctx, sess.ID, frameID, item.Record)
				if err != nil {
					return err
				}
				printFeed(p, item.Name, res)
				if res.Progress.Done {
					p.success("routine completed")
					return nil
				}
			}
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			final, err := svc.Session(cmd.Context(), sess.ID)
			if err == nil && final.Progress.Done {
				return nil
			}
			return fmt.Errorf("%w: stopped at step %d of %d", errNotCompleted, final.Progress.Cursor, seq.Len())
		},
	}
	cmd.Flags().StringVar(&sequenceDir, "sequence", "", "key pose directory (default from config)")
	cmd.Flags().StringVar(&manifest, "manifest", "", "manifest file inside the sequence directory")
	cmd.Flags().StringVar(&watchDir, "watch", "", "follow frames written into this directory")
	cmd.Flags().StringVar(&replayDir, "replay", "", "play back recorded frames from this directory")
	cmd.Flags().StringVar(&pattern, "pattern", "*.json", "frame file pattern")
	cmd.Flags().DurationVar(&interval, "interval", 0, "delay between replayed frames")
	return cmd
}

func printFeed(p printer, name string, res app.FeedResult) { //nolint:gocritic // hugeParam: results travel by value
	switch res.Outcome {
	case sequence.Advanced:
		p.info("%s: %s (score %s)", name, res.Outcome, score(res.Score))
	case sequence.Rejected:
		p.detail("%s: %s (score %s, waiting for %s)", name, res.Outcome, score(res.Score), res.Progress.Current)
	default:
		p.detail("%s: %s", name, res.Outcome)
	}
	for _, ev := range res.Events {
		switch ev.Kind {
		case model.KindTargetReached:
			if ev.NextLabel != "" {
				p.event("reached %s (step %d), next %s", ev.Label, ev.Index+1, ev.NextLabel)
			} else {
				p.event("reached %s (step %d)", ev.Label, ev.Index+1)
			}
		case model.KindSequenceComplete:
			p.event("all %d steps done", ev.Index)
		}
	}
}
