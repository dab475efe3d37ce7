package library

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/okian/posematch/internal/domain/skeleton"
	"github.com/okian/posematch/pkg/logger"
	"github.com/okian/posematch/pkg/metrics"
)

const defaultPattern = "*.json"

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithPattern sets the doublestar pattern that selects skeleton files.
func WithPattern(pattern string) Option {
	return func(l *Loader) {
		if pattern != "" {
			l.pattern = pattern
		}
	}
}

// WithLogger sets the logger used for skip warnings.
func WithLogger(lg logger.Logger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// WithSource names the load in metrics and logs, e.g. "library" or "sequence".
func WithSource(source string) Option {
	return func(l *Loader) {
		if source != "" {
			l.source = source
		}
	}
}

// Loader reads labeled skeleton files from an fs.FS.
type Loader struct {
	pattern string
	source  string
	logger  logger.Logger
}

// NewLoader creates a Loader matching *.json by default.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		pattern: defaultPattern,
		source:  "library",
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logger.Named("loader." + l.source)
	}
	return l
}

// Result is the outcome of a load. Skipped files do not fail the load; they
// are collected in Warnings.
type Result struct {
	Entries  []Entry
	Warnings *multierror.Error
}

// Err returns the aggregated skip warnings, or nil.
func (r Result) Err() error {
	return r.Warnings.ErrorOrNil()
}

// Library builds an unordered Library from the result.
func (r Result) Library() *Library { return NewLibrary(r.Entries) }

// Sequence builds an ordered Sequence from the result.
func (r Result) Sequence() *Sequence { return NewSequence(r.Entries) }

// Load parses every file matching the pattern. Files are visited in lexical
// path order, so the result can serve as a Sequence. Only a bad pattern or a
// cancelled ctx fail the load.
func (l *Loader) Load(ctx context.Context, fsys fs.FS) (Result, error) {
	if !doublestar.ValidatePattern(l.pattern) {
		return Result{}, fmt.Errorf("%w: %q", ErrBadPattern, l.pattern)
	}
	paths, err := doublestar.Glob(fsys, l.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return Result{}, fmt.Errorf("glob %q: %w", l.pattern, err)
	}
	sort.Strings(paths)

	var res Result
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		e, err := l.readEntry(fsys, p, Label(p))
		if err != nil {
			l.skip(ctx, &res, p, err)
			continue
		}
		res.Entries = append(res.Entries, e)
	}

	l.logger.Info(ctx, "skeleton files loaded",
		logger.String("pattern", l.pattern),
		logger.Int("loaded", len(res.Entries)),
		logger.Int("skipped", skippedCount(res)),
	)
	return res, nil
}

// Manifest lists the steps of a routine in order.
type Manifest struct {
	Name  string         `yaml:"name"`
	Steps []ManifestStep `yaml:"steps"`
}

// ManifestStep names one target pose file. An empty label defaults to the
// file's base name.
type ManifestStep struct {
	Label string `yaml:"label"`
	File  string `yaml:"file"`
}

// LoadManifest reads a YAML manifest at name and loads its steps in the
// listed order. File paths are relative to the manifest's directory. Missing
// or malformed step files are skipped like in Load.
func (l *Loader) LoadManifest(ctx context.Context, fsys fs.FS, name string) (Result, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrManifest, name, err)
	}

	dir := path.Dir(name)
	var res Result
	for i, step := range m.Steps {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if step.File == "" {
			l.skip(ctx, &res, fmt.Sprintf("%s#%d", name, i), fmt.Errorf("%w: step has no file", ErrSkipped))
			continue
		}
		p := path.Join(dir, step.File)
		label := step.Label
		if label == "" {
			label = Label(p)
		}
		e, err := l.readEntry(fsys, p, label)
		if err != nil {
			l.skip(ctx, &res, p, err)
			continue
		}
		res.Entries = append(res.Entries, e)
	}

	l.logger.Info(ctx, "sequence manifest loaded",
		logger.String("manifest", name),
		logger.String("routine", m.Name),
		logger.Int("steps", len(res.Entries)),
		logger.Int("skipped", skippedCount(res)),
	)
	return res, nil
}

func (l *Loader) readEntry(fsys fs.FS, p, label string) (Entry, error) {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrSkipped, p, err)
	}
	rec, err := skeleton.Parse(data)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrSkipped, p, err)
	}
	if rec.Empty() {
		return Entry{}, fmt.Errorf("%w: %s: no known joints", ErrSkipped, p)
	}
	return Entry{Label: label, Record: rec}, nil
}

func (l *Loader) skip(ctx context.Context, res *Result, p string, err error) {
	l.logger.Warn(ctx, "skipping skeleton file",
		logger.String("path", p),
		logger.Error(err),
	)
	metrics.RecordLoaderSkipped(l.source)
	res.Warnings = multierror.Append(res.Warnings, err)
}

func skippedCount(res Result) int {
	if res.Warnings == nil {
		return 0
	}
	return len(res.Warnings.Errors)
}

// Label derives an entry label from a file path: the base name without its
// extension.
func Label(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
