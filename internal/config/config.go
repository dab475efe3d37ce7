// Package config defines service configuration and its loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers defaults, an optional YAML file and environment variables.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Scoring modes.
const (
	ModeWeighted = "weighted"
	ModeUniform  = "uniform"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// LibraryDir holds the unordered reference skeletons.
	LibraryDir string `koanf:"library_dir"`
	// LibraryPattern selects library files inside LibraryDir (doublestar syntax).
	LibraryPattern string `koanf:"library_pattern"`

	// SequenceDir holds the ordered key poses of the routine.
	SequenceDir string `koanf:"sequence_dir"`
	// SequencePattern selects sequence files; order is lexical by path.
	SequencePattern string `koanf:"sequence_pattern"`
	// SequenceManifest, if set, is a YAML file inside SequenceDir listing steps in order.
	SequenceManifest string `koanf:"sequence_manifest"`

	// ScoringMode is "weighted" (joint weights + orientation) or "uniform".
	ScoringMode string `koanf:"scoring_mode"`
	// JointWeights overrides per-joint importance in weighted mode.
	JointWeights map[string]float64 `koanf:"joint_weights"`
	// VisibilityFloor is the minimum visibility of torso landmarks for the orientation term.
	VisibilityFloor float64 `koanf:"visibility_floor"`
	// DistanceWeight and OrientationWeight fuse the two score components.
	DistanceWeight    float64 `koanf:"distance_weight"`
	OrientationWeight float64 `koanf:"orientation_weight"`
	// AngleScale brings the torso angle (radians) into the joint distance range.
	AngleScale float64 `koanf:"angle_scale"`

	// LibraryThreshold accepts a best match when its score is below it.
	LibraryThreshold float64 `koanf:"library_threshold"`
	// SequenceThreshold advances a session when the current target scores below it.
	SequenceThreshold float64 `koanf:"sequence_threshold"`

	// ParallelSearch fans library searches out over SearchWorkers goroutines.
	ParallelSearch bool `koanf:"parallel_search"`
	SearchWorkers  int  `koanf:"search_workers"`

	// WorkerCount sets the number of asynchronous frame workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds each worker's frame queue.
	QueueSize int `koanf:"queue_size"`
	// DedupeSize bounds the remembered frame ids.
	DedupeSize int `koanf:"dedupe_size"`
	// SessionTTLSeconds expires sessions idle for longer; 0 disables expiry.
	SessionTTLSeconds int `koanf:"session_ttl_seconds"`

	// RedisAddr enables the Redis event publisher when set.
	RedisAddr    string `koanf:"redis_addr"`
	RedisChannel string `koanf:"redis_channel"`

	// HistoryDB enables the SQLite event history when set.
	HistoryDB string `koanf:"history_db"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		LibraryDir:        "./test_files/video_output",
		LibraryPattern:    "*.json",
		SequenceDir:       "./test_files/keymotion",
		SequencePattern:   "*.json",
		ScoringMode:       ModeWeighted,
		JointWeights:      map[string]float64{},
		VisibilityFloor:   0.6,
		DistanceWeight:    0.6,
		OrientationWeight: 0.4,
		AngleScale:        0.1,
		LibraryThreshold:  0.2,
		SequenceThreshold: 0.25,
		ParallelSearch:    false,
		SearchWorkers:     runtime.NumCPU(),
		WorkerCount:       runtime.NumCPU(),
		QueueSize:         1024,
		DedupeSize:        50_000,
		SessionTTLSeconds: 900,
		RedisChannel:      "posematch:events",
	}
}

// Validate checks value ranges and returns an ErrInvalidConfig-wrapped error.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ScoringMode != ModeWeighted && c.ScoringMode != ModeUniform:
		return fmt.Errorf("%w: scoring_mode must be %q or %q, got %q", ErrInvalidConfig, ModeWeighted, ModeUniform, c.ScoringMode)
	case c.VisibilityFloor < 0 || c.VisibilityFloor > 1:
		return fmt.Errorf("%w: visibility_floor must be within [0,1]", ErrInvalidConfig)
	case c.DistanceWeight < 0 || c.OrientationWeight < 0:
		return fmt.Errorf("%w: fusion weights must not be negative", ErrInvalidConfig)
	case c.DistanceWeight+c.OrientationWeight == 0:
		return fmt.Errorf("%w: fusion weights must not both be zero", ErrInvalidConfig)
	case c.AngleScale < 0:
		return fmt.Errorf("%w: angle_scale must not be negative", ErrInvalidConfig)
	case c.LibraryThreshold <= 0 || c.SequenceThreshold <= 0:
		return fmt.Errorf("%w: thresholds must be positive", ErrInvalidConfig)
	case c.SessionTTLSeconds < 0:
		return fmt.Errorf("%w: session_ttl_seconds must not be negative", ErrInvalidConfig)
	}
	for joint, w := range c.JointWeights {
		if w < 0 {
			return fmt.Errorf("%w: joint weight for %s must not be negative", ErrInvalidConfig, joint)
		}
	}
	return nil
}
