package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/posematch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.SequenceThreshold, convey.ShouldEqual, 0.25)
				convey.So(cfg.ParallelSearch, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("POSEMATCH_ADDR", ":8080")
			_ = os.Setenv("POSEMATCH_SEQUENCE_THRESHOLD", "0.3")
			_ = os.Setenv("POSEMATCH_PARALLEL_SEARCH", "true")
			_ = os.Setenv("POSEMATCH_SEARCH_WORKERS", "6")
			_ = os.Setenv("POSEMATCH_SCORING_MODE", "uniform")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SequenceThreshold, convey.ShouldEqual, 0.3)
				convey.So(cfg.ParallelSearch, convey.ShouldBeTrue)
				convey.So(cfg.SearchWorkers, convey.ShouldEqual, 6)
				convey.So(cfg.ScoringMode, convey.ShouldEqual, config.ModeUniform)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			yamlContent := `
addr: ":9090"
library_dir: /data/library
library_threshold: 0.15
joint_weights:
  left_hip: 2.0
  right_heel: 0.5
`
			path := createTempConfigFile(t, yamlContent)
			_ = os.Setenv("POSEMATCH_CONFIG", path)
			_ = os.Setenv("POSEMATCH_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env should win over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LibraryDir, convey.ShouldEqual, "/data/library")
				convey.So(cfg.LibraryThreshold, convey.ShouldEqual, 0.15)
				convey.So(cfg.JointWeights["left_hip"], convey.ShouldEqual, 2.0)
				convey.So(cfg.JointWeights["right_heel"], convey.ShouldEqual, 0.5)
				convey.So(cfg.SequenceThreshold, convey.ShouldEqual, 0.25)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			path := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("POSEMATCH_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("POSEMATCH_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("POSEMATCH_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})
	})
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, name := range []string{
		"POSEMATCH_CONFIG",
		"POSEMATCH_ADDR",
		"POSEMATCH_SEQUENCE_THRESHOLD",
		"POSEMATCH_PARALLEL_SEARCH",
		"POSEMATCH_SEARCH_WORKERS",
		"POSEMATCH_SCORING_MODE",
	} {
		_ = os.Unsetenv(name)
	}
}
