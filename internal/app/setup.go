package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/posematch/internal/config"
	"github.com/okian/posematch/internal/domain/library"
	"github.com/okian/posematch/internal/domain/scoring"
	"github.com/okian/posematch/internal/domain/skeleton"
	"github.com/okian/posematch/pkg/logger"
)

// NewScorer builds the scorer described by cfg. Joint weights overlay the
// weighted defaults; a zero weight drops the joint. Uniform mode ignores them.
func NewScorer(cfg *config.Config) *scoring.Scorer {
	opts := []scoring.Option{
		scoring.WithVisibilityFloor(cfg.VisibilityFloor),
		scoring.WithFusionWeights(cfg.DistanceWeight, cfg.OrientationWeight),
		scoring.WithAngleScale(cfg.AngleScale),
	}
	if cfg.ScoringMode == config.ModeUniform {
		return scoring.New(append([]scoring.Option{scoring.WithMode(scoring.Uniform)}, opts...)...)
	}

	if len(cfg.JointWeights) > 0 {
		weights := scoring.DefaultWeights()
		for name, w := range cfg.JointWeights {
			j := skeleton.Joint(name)
			if !skeleton.Known(j) {
				logger.Named("setup").Warn(context.Background(), "ignoring weight of unknown joint", logger.String("joint", name))
				continue
			}
			weights[j] = w
		}
		opts = append(opts, scoring.WithJointWeights(weights))
	}
	return scoring.New(append([]scoring.Option{scoring.WithMode(scoring.Weighted)}, opts...)...)
}

// LoadLibrary reads the reference library from cfg.LibraryDir.
func LoadLibrary(ctx context.Context, cfg *config.Config) (*library.Library, error) {
	if cfg.LibraryDir == "" {
		return library.NewLibrary(nil), nil
	}
	res, err := library.NewLoader(
		library.WithPattern(cfg.LibraryPattern),
		library.WithSource("library"),
	).Load(ctx, os.DirFS(cfg.LibraryDir))
	if err != nil {
		return nil, fmt.Errorf("load library %s: %w", cfg.LibraryDir, err)
	}
	return res.Library(), nil
}

// LoadSequence reads the routine from cfg.SequenceDir, through the manifest
// when one is configured.
func LoadSequence(ctx context.Context, cfg *config.Config) (*library.Sequence, error) {
	if cfg.SequenceDir == "" {
		return library.NewSequence(nil), nil
	}
	l := library.NewLoader(
		library.WithPattern(cfg.SequencePattern),
		library.WithSource("sequence"),
	)
	fsys := os.DirFS(cfg.SequenceDir)

	var (
		res library.Result
		err error
	)
	if cfg.SequenceManifest != "" {
		res, err = l.LoadManifest(ctx, fsys, cfg.SequenceManifest)
	} else {
		res, err = l.Load(ctx, fsys)
	}
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", cfg.SequenceDir, err)
	}
	return res.Sequence(), nil
}

// ConfigOptions maps the tuning keys of cfg to service options.
func ConfigOptions(cfg *config.Config) []Option {
	opts := []Option{
		WithLibraryThreshold(cfg.LibraryThreshold),
		WithSequenceThreshold(cfg.SequenceThreshold),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithSessionTTL(time.Duration(cfg.SessionTTLSeconds) * time.Second),
	}
	if cfg.ParallelSearch {
		opts = append(opts, WithParallelSearch(cfg.SearchWorkers))
	}
	return opts
}
