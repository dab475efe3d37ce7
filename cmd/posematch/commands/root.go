// Package commands implements the posematch command line.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/posematch/internal/config"
	"github.com/okian/posematch/pkg/logger"
)

// globals are the values shared by every subcommand once the root has
// parsed its persistent flags.
type globals struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// Execute builds the root command and runs it against os.Args.
func Execute(version string) error {
	ctx := context.Background()
	root := newRootCmd(version)
	if err := root.ExecuteContext(ctx); err != nil {
		printer{out: root.ErrOrStderr()}.failure("%v", err)
		return err
	}
	return nil
}

func newRootCmd(version string) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "posematch",
		Short: "posematch - skeleton similarity and routine tracking",
		Long: `posematch compares pose skeletons against a reference library and
tracks sessions as they walk through an ordered routine of key poses.

The HTTP service is a separate binary; these commands work on local files
or talk to a running server.`,
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
		SilenceErrors:      true,
		SilenceUsage:       true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (overrides "+config.EnvConfigFile+")")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newMatchCmd(g),
		newRoutineCmd(g),
		newReplayCmd(g),
		newHistoryCmd(g),
	)
	return root
}

// load resolves configuration and sends logs to stderr so command output
// stays readable.
func (g *globals) load(cmd *cobra.Command) error {
	if g.configPath != "" {
		if err := os.Setenv(config.EnvConfigFile, g.configPath); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	if err := logger.SetLevelString(level); err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}
