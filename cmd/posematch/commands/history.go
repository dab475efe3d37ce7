package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/posematch/internal/adapters/repository"
)

var errNoHistory = errors.New("no history database: set --db or history_db")

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		db    string
		limit int
		prune time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "List the stored motion events of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if db == "" {
				db = g.cfg.HistoryDB
			}
			if db == "" {
				return errNoHistory
			}

			h, err := repository.OpenHistory(ctx, db)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			p := printer{out: cmd.OutOrStdout()}
			if prune > 0 {
				n, err := h.DeleteBefore(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				p.step("pruned %d events older than %s", n, prune)
			}

			events, err := h.ListBySession(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				p.warning("no events for session %s", args[0])
				return nil
			}
			for _, ev := range events {
				line := ev.TS.Format(time.RFC3339) + " " + string(ev.Kind)
				if ev.Label != "" {
					line += " " + ev.Label
				}
				p.info("%s (score %s)", line, score(ev.Score))
				if ev.NextLabel != "" {
					p.detail("next %s", ev.NextLabel)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "SQLite history file (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete events older than this before listing")
	return cmd
}
