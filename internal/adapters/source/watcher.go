// Package source turns the pose extractor's output directory into a stream
// of skeleton records.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/okian/posematch/internal/domain/skeleton"
	"github.com/okian/posematch/pkg/logger"
	"github.com/okian/posematch/pkg/metrics"
)

const (
	defaultPattern  = "*.json"
	defaultDebounce = 50 * time.Millisecond
	itemBuffer      = 16
)

// Item is one record read from a file.
type Item struct {
	Name   string
	Record skeleton.Record
	TS     time.Time
}

// Option applies a configuration option to the Watcher.
type Option func(*Watcher)

// WithPattern selects which files, relative to the directory, are read.
func WithPattern(pattern string) Option {
	return func(w *Watcher) {
		if pattern != "" {
			w.pattern = pattern
		}
	}
}

// WithDebounce sets how long a file must stay unchanged before it is read.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(lg logger.Logger) Option {
	return func(w *Watcher) {
		if lg != nil {
			w.logger = lg
		}
	}
}

// Watcher emits a record each time a matching file in dir is created or
// rewritten. Files that fail to parse are skipped.
type Watcher struct {
	dir      string
	pattern  string
	debounce time.Duration
	logger   logger.Logger
}

// NewWatcher creates a Watcher for dir.
func NewWatcher(dir string, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		pattern:  defaultPattern,
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named("source.watch")
	}
	return w
}

type fired struct {
	path string
	gen  uint64
}

// Watch starts watching and returns the record stream. The stream is closed
// when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan Item, error) {
	if !doublestar.ValidatePattern(w.pattern) {
		return nil, fmt.Errorf("%w: %q", ErrBadPattern, w.pattern)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}

	out := make(chan Item, itemBuffer)
	go w.loop(ctx, fw, out)

	w.logger.Info(ctx, "watching for skeleton files",
		logger.String("dir", w.dir),
		logger.String("pattern", w.pattern),
	)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan<- Item) {
	defer close(out)
	defer fw.Close()

	fire := make(chan fired)
	done := make(chan struct{})
	defer close(done)
	gens := make(map[string]uint64)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !w.matches(ev.Name) {
				continue
			}
			if t, ok := timers[ev.Name]; ok {
				t.Stop()
			}
			gens[ev.Name]++
			f := fired{path: ev.Name, gen: gens[ev.Name]}
			timers[ev.Name] = time.AfterFunc(w.debounce, func() { deliver(f, fire, done) })

		case f := <-fire:
			if gens[f.path] != f.gen {
				continue
			}
			delete(gens, f.path)
			delete(timers, f.path)
			item, err := w.read(f.path)
			if err != nil {
				metrics.RecordLoaderSkipped("watch")
				w.logger.Warn(ctx, "skipping skeleton file", logger.String("path", f.path), logger.Error(err))
				continue
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			metrics.RecordErrorByComponent("source", "watch_error")
			w.logger.Error(ctx, "error watching files", logger.Error(err))
		}
	}
}

// deliver hands a settled file to the loop, or drops it once the loop has
// returned.
func deliver(f fired, fire chan<- fired, done <-chan struct{}) {
	select {
	case fire <- f:
	case <-done:
	}
}

func (w *Watcher) matches(name string) bool {
	rel, err := filepath.Rel(w.dir, name)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

func (w *Watcher) read(path string) (Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Item{}, err
	}
	rec, err := skeleton.Parse(data)
	if err != nil {
		return Item{}, err
	}
	return Item{Name: filepath.Base(path), Record: rec, TS: time.Now()}, nil
}
