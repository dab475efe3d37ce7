package library

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/okian/posematch/internal/domain/skeleton"
	"github.com/okian/posematch/pkg/metrics"
)

// checkEvery is how many entries a scan scores between ctx checks.
const checkEvery = 64

// Scorer computes the dissimilarity between two records.
type Scorer interface {
	Score(a, b skeleton.Record) float64
}

// Match is the best library entry for an input.
type Match struct {
	Label string  `json:"label"`
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// SearchOption applies a configuration option to the Searcher.
type SearchOption func(*Searcher)

// WithParallel splits the scan across workers goroutines. workers <= 0 uses
// GOMAXPROCS.
func WithParallel(workers int) SearchOption {
	return func(s *Searcher) {
		s.parallel = true
		if workers > 0 {
			s.workers = workers
		}
	}
}

// Searcher finds the entry of a Library closest to an input record.
type Searcher struct {
	library  *Library
	scorer   Scorer
	parallel bool
	workers  int
}

// NewSearcher creates a sequential Searcher over lib.
func NewSearcher(lib *Library, scorer Scorer, opts ...SearchOption) *Searcher {
	s := &Searcher{
		library: lib,
		scorer:  scorer,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Best returns the entry with the lowest score. Equal scores resolve to the
// lowest index, which has no meaning beyond being stable. It returns
// ErrNoMatch when the library is empty or every score is +Inf.
func (s *Searcher) Best(ctx context.Context, input skeleton.Record) (Match, error) {
	start := time.Now()
	defer func() {
		metrics.RecordSearchLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if s.library.Len() == 0 {
		metrics.RecordBestMatch("empty")
		return Match{}, ErrNoMatch
	}
	entries := s.library.entries

	var best candidate
	var err error
	if s.parallel && s.workers > 1 && len(entries) > 1 {
		best, err = s.scanParallel(ctx, input, entries)
	} else {
		best, err = s.scan(ctx, input, entries, 0)
	}
	if err != nil {
		return Match{}, err
	}
	if best.index < 0 {
		metrics.RecordBestMatch("miss")
		return Match{}, ErrNoMatch
	}

	metrics.RecordBestMatch("hit")
	return Match{Label: entries[best.index].Label, Index: best.index, Score: best.score}, nil
}

type candidate struct {
	index int
	score float64
}

// better orders candidates by score, then by index.
func (c candidate) better(o candidate) bool {
	if o.index < 0 {
		return c.index >= 0
	}
	if c.index < 0 {
		return false
	}
	if c.score != o.score {
		return c.score < o.score
	}
	return c.index < o.index
}

func (s *Searcher) scan(ctx context.Context, input skeleton.Record, entries []Entry, offset int) (candidate, error) {
	best := candidate{index: -1, score: math.Inf(1)}
	for i, e := range entries {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return candidate{}, err
			}
		}
		score := s.scorer.Score(input, e.Record)
		if math.IsInf(score, 1) || math.IsNaN(score) {
			continue
		}
		c := candidate{index: offset + i, score: score}
		if c.better(best) {
			best = c
		}
	}
	return best, nil
}

func (s *Searcher) scanParallel(ctx context.Context, input skeleton.Record, entries []Entry) (candidate, error) {
	workers := s.workers
	if workers > len(entries) {
		workers = len(entries)
	}
	size := (len(entries) + workers - 1) / workers

	var (
		mu       sync.Mutex
		best     = candidate{index: -1, score: math.Inf(1)}
		firstErr error
		wg       sync.WaitGroup
	)
	for lo := 0; lo < len(entries); lo += size {
		hi := lo + size
		if hi > len(entries) {
			hi = len(entries)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			local, err := s.scan(ctx, input, entries[lo:hi], lo)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if local.better(best) {
				best = local
			}
		}(lo, hi)
	}
	wg.Wait()

	if firstErr != nil {
		return candidate{}, firstErr
	}
	return best, nil
}
