package source_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/posematch/internal/adapters/source"
	"github.com/okian/posematch/internal/domain/library"
	"github.com/okian/posematch/internal/domain/skeleton"
	. "github.com/smartystreets/goconvey/convey"
)

const processed = `{"left_hip": {"x": 0.4, "y": 0.6, "z": 0.0, "visibility": 0.9},
"right_hip": {"x": 0.6, "y": 0.6, "z": 0.0, "visibility": 0.9},
"type": "camera_frame"}`

func next(t *testing.T, items <-chan source.Item) (source.Item, bool) {
	t.Helper()
	select {
	case it, ok := <-items:
		return it, ok
	case <-time.After(3 * time.Second):
		return source.Item{}, false
	}
}

func TestWatcher(t *testing.T) {
	Convey("Given a watcher on an empty directory", t, func() {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		w := source.NewWatcher(dir, source.WithDebounce(20*time.Millisecond))
		items, err := w.Watch(ctx)
		So(err, ShouldBeNil)

		Convey("When the extractor writes a frame file", func() {
			So(os.WriteFile(filepath.Join(dir, "processed.json"), []byte(processed), 0o600), ShouldBeNil)

			Convey("Then the parsed record is emitted", func() {
				it, ok := next(t, items)
				So(ok, ShouldBeTrue)
				So(it.Name, ShouldEqual, "processed.json")
				So(it.Record.Joints(), ShouldResemble, []skeleton.Joint{skeleton.LeftHip, skeleton.RightHip})
			})
		})

		Convey("When a broken file and a non-matching file precede a good one", func() {
			So(os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"left_hip":`), 0o600), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(processed), 0o600), ShouldBeNil)
			time.Sleep(100 * time.Millisecond)
			So(os.WriteFile(filepath.Join(dir, "good.json"), []byte(processed), 0o600), ShouldBeNil)

			Convey("Then only the good file comes through", func() {
				it, ok := next(t, items)
				So(ok, ShouldBeTrue)
				So(it.Name, ShouldEqual, "good.json")
			})
		})

		Convey("When the context is cancelled", func() {
			cancel()

			Convey("Then the stream closes", func() {
				for {
					_, ok := next(t, items)
					if !ok {
						break
					}
				}
			})
		})
	})

	Convey("Given invalid watcher settings", t, func() {
		ctx := context.Background()

		Convey("Then a bad pattern is rejected", func() {
			_, err := source.NewWatcher(t.TempDir(), source.WithPattern("[")).Watch(ctx)
			So(errors.Is(err, source.ErrBadPattern), ShouldBeTrue)
		})

		Convey("Then a missing directory is rejected", func() {
			_, err := source.NewWatcher(filepath.Join(t.TempDir(), "missing")).Watch(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestReplay(t *testing.T) {
	Convey("Given a list of entries", t, func() {
		entries := []library.Entry{{Label: "a"}, {Label: "b"}, {Label: "c"}}

		Convey("When replayed without pacing", func() {
			var names []string
			for it := range source.Replay(context.Background(), entries, 0) {
				names = append(names, it.Name)
			}

			Convey("Then every entry is emitted in order", func() {
				So(names, ShouldResemble, []string{"a", "b", "c"})
			})
		})

		Convey("When replayed with pacing", func() {
			start := time.Now()
			n := 0
			for range source.Replay(context.Background(), entries, 20*time.Millisecond) {
				n++
			}

			Convey("Then entries are spaced by the interval", func() {
				So(n, ShouldEqual, 3)
				So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 40*time.Millisecond)
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			items := source.Replay(ctx, entries, time.Hour)
			first := <-items
			cancel()

			Convey("Then the stream ends early", func() {
				So(first.Name, ShouldEqual, "a")
				_, ok := <-items
				So(ok, ShouldBeFalse)
			})
		})
	})
}
