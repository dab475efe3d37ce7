package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/posematch/internal/adapters/http/api"
	"github.com/okian/posematch/internal/adapters/repository"
	app "github.com/okian/posematch/internal/app"
	"github.com/okian/posematch/internal/domain/library"
	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/internal/domain/skeleton"
)

const (
	standJSON = `{"left_shoulder": {"x": 0.4, "y": 0.3, "z": 0, "visibility": 0.9},
"right_shoulder": {"x": 0.6, "y": 0.3, "z": 0, "visibility": 0.9},
"left_hip": {"x": 0.4, "y": 0.6, "z": 0, "visibility": 0.9},
"right_hip": {"x": 0.6, "y": 0.6, "z": 0, "visibility": 0.9}}`
	squatJSON = `{"left_shoulder": {"x": 0.1, "y": 0.9, "z": 0.4, "visibility": 0.9},
"right_shoulder": {"x": 0.9, "y": 0.9, "z": 0.4, "visibility": 0.9},
"left_hip": {"x": 0.1, "y": 1.0, "z": 0.6, "visibility": 0.9},
"right_hip": {"x": 0.9, "y": 1.0, "z": 0.6, "visibility": 0.9}}`
)

func init() {
	color.NoColor = true
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

// run executes the CLI with args and returns stdout and the error.
func run(args ...string) (string, error) {
	root := newRootCmd("test")
	out, logs := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(logs)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRoot(t *testing.T) {
	Convey("Given the root command", t, func() {
		Convey("Then no subcommand shows help", func() {
			out, err := run()
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Usage:")
			So(out, ShouldContainSubstring, "routine")
		})

		Convey("Then unknown flags are rejected", func() {
			_, err := run("--unknown-flag", "value")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unknown flag")
		})

		Convey("Then an invalid log level fails before the command runs", func() {
			_, err := run("--log-level", "loud", "history", "s-1")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unknown log level")
		})

		Convey("Then a missing config file is reported", func() {
			t.Setenv("POSEMATCH_CONFIG", "")
			_, err := run("--config", filepath.Join(t.TempDir(), "absent.yaml"), "history", "s-1")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to load config")
		})
	})
}

func TestMatch(t *testing.T) {
	Convey("Given a library of two poses", t, func() {
		libDir, inDir := t.TempDir(), t.TempDir()
		writeFiles(t, libDir, map[string]string{"stand.json": standJSON, "squat.json": squatJSON})
		writeFiles(t, inDir, map[string]string{"frame.json": squatJSON, "bad.json": `{`})

		Convey("When a skeleton equal to one of them is matched", func() {
			out, err := run("match", "--library", libDir, filepath.Join(inDir, "frame.json"))

			Convey("Then that pose is reported as a match", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "matching against 2 poses")
				So(out, ShouldContainSubstring, "✓ frame.json → squat (score 0.0000)")
			})
		})

		Convey("When a file cannot be parsed", func() {
			out, err := run("match", "--library", libDir, filepath.Join(inDir, "bad.json"), filepath.Join(inDir, "frame.json"))

			Convey("Then the rest are still matched and the command fails", func() {
				So(errors.Is(err, errFilesFailed), ShouldBeTrue)
				So(out, ShouldContainSubstring, "✗ bad.json")
				So(out, ShouldContainSubstring, "→ squat")
			})
		})

		Convey("When the library is empty", func() {
			_, err := run("match", "--library", t.TempDir(), filepath.Join(inDir, "frame.json"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "has no poses")
		})
	})
}

func TestRoutine(t *testing.T) {
	Convey("Given a two step routine and recorded frames", t, func() {
		seqDir, framesDir := t.TempDir(), t.TempDir()
		writeFiles(t, seqDir, map[string]string{"01_stand.json": standJSON, "02_squat.json": squatJSON})

		Convey("When the frames walk the routine", func() {
			writeFiles(t, framesDir, map[string]string{
				"001.json": standJSON,
				"002.json": standJSON,
				"003.json": squatJSON,
			})
			out, err := run("routine", "--sequence", seqDir, "--replay", framesDir)

			Convey("Then every step is reached and the routine completes", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "routine of 2 steps")
				So(out, ShouldContainSubstring, "reached 01_stand (step 1), next 02_squat")
				So(out, ShouldContainSubstring, "002: rejected")
				So(out, ShouldContainSubstring, "all 2 steps done")
				So(out, ShouldContainSubstring, "✓ routine completed")
			})
		})

		Convey("When the frames stop early", func() {
			writeFiles(t, framesDir, map[string]string{"001.json": standJSON})
			_, err := run("routine", "--sequence", seqDir, "--replay", framesDir)

			Convey("Then the command reports where it stopped", func() {
				So(errors.Is(err, errNotCompleted), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "step 1 of 2")
			})
		})

		Convey("When the extractor keeps rewriting one watched file", func() {
			type result struct {
				out string
				err error
			}
			finished := make(chan result, 1)
			go func() {
				out, err := run("routine", "--sequence", seqDir, "--watch", framesDir)
				finished <- result{out: out, err: err}
			}()

			var res result
			poses := []string{standJSON, squatJSON}
			deadline := time.After(10 * time.Second)
			ticker := time.NewTicker(150 * time.Millisecond)
			defer ticker.Stop()
		loop:
			for i := 0; ; i++ {
				select {
				case res = <-finished:
					break loop
				case <-deadline:
					t.Fatal("routine did not complete from a rewritten file")
				case <-ticker.C:
					path := filepath.Join(framesDir, "processed.json")
					if err := os.WriteFile(path, []byte(poses[i%len(poses)]), 0o600); err != nil {
						t.Fatal(err)
					}
				}
			}

			Convey("Then every rewrite is scored and the routine completes", func() {
				So(res.err, ShouldBeNil)
				So(res.out, ShouldContainSubstring, "watching "+framesDir)
				So(res.out, ShouldContainSubstring, "processed.json: advanced")
				So(res.out, ShouldContainSubstring, "reached 01_stand (step 1), next 02_squat")
				So(res.out, ShouldContainSubstring, "✓ routine completed")
			})
		})

		Convey("Then a frame source is required", func() {
			_, err := run("routine", "--sequence", seqDir)
			So(err, ShouldEqual, errNoSource)

			_, err = run("routine", "--sequence", seqDir, "--watch", framesDir, "--replay", framesDir)
			So(err, ShouldEqual, errNoSource)
		})

		Convey("Then an empty routine is refused", func() {
			_, err := run("routine", "--sequence", t.TempDir(), "--replay", framesDir)
			So(errors.Is(err, errEmptyRoutine), ShouldBeTrue)
		})
	})
}

func TestReplay(t *testing.T) {
	Convey("Given a running server with a two step routine", t, func() {
		ctx := context.Background()
		stand, err := skeleton.Parse([]byte(standJSON))
		So(err, ShouldBeNil)
		squat, err := skeleton.Parse([]byte(squatJSON))
		So(err, ShouldBeNil)
		seq := library.NewSequence([]library.Entry{
			{Label: "01_stand", Record: stand},
			{Label: "02_squat", Record: squat},
		})
		svc := app.New(app.WithSequence(seq))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		srv := httptest.NewServer(api.NewServer(svc, svc).Handler())
		Reset(srv.Close)

		framesDir := t.TempDir()
		writeFiles(t, framesDir, map[string]string{"001.json": standJSON, "002.json": squatJSON})

		Convey("When the frames are replayed", func() {
			out, err := run("replay", "--url", srv.URL, framesDir)

			Convey("Then the server completes the routine", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "001: advanced")
				So(out, ShouldContainSubstring, "target_reached 01_stand, next 02_squat")
				So(out, ShouldContainSubstring, "advanced 2, rejected 0")
				So(out, ShouldContainSubstring, "✓ routine completed")
			})
		})

		Convey("When the server is unreachable", func() {
			_, err := run("replay", "--url", "http://127.0.0.1:1", "--timeout", "200ms", framesDir)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check failed")
		})
	})
}

func TestHistory(t *testing.T) {
	Convey("Given a history database with stored events", t, func() {
		ctx := context.Background()
		db := filepath.Join(t.TempDir(), "history.db")
		h, err := repository.OpenHistory(ctx, db)
		So(err, ShouldBeNil)

		old := time.Now().Add(-48 * time.Hour)
		So(h.Publish(ctx, model.MotionEvent{
			ID: "ev-old", SessionID: "s-1", Kind: model.KindTargetReached,
			Index: 0, Label: "warmup", Score: 0.1, NextIndex: 1, NextLabel: "stand", TS: old,
		}), ShouldBeNil)
		So(h.Publish(ctx, model.MotionEvent{
			ID: "ev-new", SessionID: "s-1", Kind: model.KindTargetReached,
			Index: 1, Label: "stand", Score: 0.05, NextIndex: 2, NextLabel: "squat", TS: time.Now(),
		}), ShouldBeNil)
		So(h.Close(), ShouldBeNil)

		Convey("When the session is listed", func() {
			out, err := run("history", "--db", db, "s-1")

			Convey("Then both events are printed oldest first", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "target_reached warmup (score 0.1000)")
				So(out, ShouldContainSubstring, "next squat")
				So(bytes.Index([]byte(out), []byte("warmup")), ShouldBeLessThan, bytes.Index([]byte(out), []byte("stand (score")))
			})
		})

		Convey("When old events are pruned first", func() {
			out, err := run("history", "--db", db, "--prune", "24h", "s-1")

			Convey("Then only the recent event remains", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "pruned 1 events")
				So(out, ShouldNotContainSubstring, "warmup")
				So(out, ShouldContainSubstring, "target_reached stand")
			})
		})

		Convey("When the session is unknown", func() {
			out, err := run("history", "--db", db, "s-2")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "no events for session s-2")
		})

		Convey("Then a database is required", func() {
			_, err := run("history", "s-1")
			So(err, ShouldEqual, errNoHistory)
		})
	})
}
