package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/posematch/internal/replay"
)

var errReplayFailed = errors.New("replay had failed frames")

func newReplayCmd(_ *globals) *cobra.Command {
	var cfg replay.Config
	cmd := &cobra.Command{
		Use:   "replay <dir>",
		Short: "Post recorded frames to a running server as one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg.Dir = args[0]
			p := printer{out: cmd.OutOrStdout()}
			p.step("replaying %s to %s", cfg.Dir, cfg.BaseURL)

			stats, err := replay.Run(ctx, cfg, func(fr replay.FrameReport) {
				reportFrame(p, fr)
			})
			if err != nil {
				return err
			}

			p.info("")
			p.info("session %s", stats.SessionID)
			p.detail("loaded %d, skipped %d, sent %d", stats.FramesLoaded, stats.FramesSkipped, stats.FramesSent)
			if cfg.Async {
				p.detail("accepted %d, duplicate %d, failed %d", stats.Accepted, stats.Duplicate, stats.Failed)
			} else {
				p.detail("advanced %d, rejected %d, ignored %d, duplicate %d, failed %d",
					stats.Advanced, stats.Rejected, stats.Ignored, stats.Duplicate, stats.Failed)
			}
			p.detail("targets reached %d in %s", stats.TargetsReached, stats.Duration.Round(time.Millisecond))

			switch {
			case stats.Failed > 0:
				return fmt.Errorf("%w: %d of %d", errReplayFailed, stats.Failed, stats.FramesSent)
			case stats.Completed:
				p.success("routine completed")
			default:
				p.warning("routine not completed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "server base URL")
	cmd.Flags().StringVar(&cfg.Pattern, "pattern", "*.json", "frame file pattern")
	cmd.Flags().DurationVar(&cfg.Interval, "interval", 0, "delay between frames")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "per request timeout")
	cmd.Flags().BoolVar(&cfg.Async, "async", false, "queue frames instead of waiting for each outcome")
	return cmd
}

func reportFrame(p printer, fr replay.FrameReport) { //nolint:gocritic // hugeParam: reports travel by value
	switch {
	case fr.Err != nil:
		p.failure("%s: %v", fr.Name, fr.Err)
		return
	case fr.Duplicate:
		p.detail("%s: duplicate", fr.Name)
		return
	case fr.Outcome == "":
		p.detail("%s: accepted", fr.Name)
		return
	}

	s := "n/a"
	if fr.Score != nil {
		s = score(*fr.Score)
	}
	p.info("%s: %s (score %s, step %d/%d)", fr.Name, fr.Outcome, s, fr.Cursor, fr.Length)
	for _, ev := range fr.Events {
		line := ev.Kind
		if ev.Label != "" {
			line += " " + ev.Label
		}
		if ev.NextLabel != "" {
			line += ", next " + ev.NextLabel
		}
		p.event("%s", line)
	}
}
