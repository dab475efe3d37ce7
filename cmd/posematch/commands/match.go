package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	app "github.com/okian/posematch/internal/app"
	"github.com/okian/posematch/internal/domain/skeleton"
)

var errFilesFailed = errors.New("some files could not be matched")

func newMatchCmd(g *globals) *cobra.Command {
	var (
		libraryDir string
		threshold  float64
	)
	cmd := &cobra.Command{
		Use:   "match <skeleton.json>...",
		Short: "Find the closest library pose for each skeleton file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := *g.cfg
			if libraryDir != "" {
				cfg.LibraryDir = libraryDir
			}
			if threshold > 0 {
				cfg.LibraryThreshold = threshold
			}

			lib, err := app.LoadLibrary(ctx, &cfg)
			if err != nil {
				return err
			}
			p := printer{out: cmd.OutOrStdout()}
			if lib.Len() == 0 {
				return fmt.Errorf("library %q has no poses", cfg.LibraryDir)
			}
			p.step("matching against %d poses (threshold %.3f)", lib.Len(), cfg.LibraryThreshold)

			svc := app.New(append(app.ConfigOptions(&cfg),
				app.WithLibrary(lib),
				app.WithScorer(app.NewScorer(&cfg)),
			)...)

			failed := 0
			for _, path := range args {
				name := filepath.Base(path)
				data, err := os.ReadFile(path)
				if err != nil {
					p.failure("%s: %v", name, err)
					failed++
					continue
				}
				rec, err := skeleton.Parse(data)
				if err != nil {
					p.failure("%s: %v", name, err)
					failed++
					continue
				}
				res, err := svc.Match(ctx, rec)
				if err != nil {
					p.failure("%s: %v", name, err)
					failed++
					continue
				}
				if res.Matched {
					p.success("%s → %s (score %s)", name, res.Label, score(res.Score))
				} else {
					p.warning("%s → %s (score %s, no match)", name, res.Label, score(res.Score))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errFilesFailed, failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&libraryDir, "library", "", "reference library directory (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "accept matches scoring below this (default from config)")
	return cmd
}
