package service

import (
	"time"

	"github.com/okian/posematch/internal/adapters/mq/publisher"
	"github.com/okian/posematch/internal/domain/library"
	"github.com/okian/posematch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLibrary sets the reference library used by Match.
func WithLibrary(lib *library.Library) Option {
	return func(s *Service) {
		if lib != nil {
			s.library = lib
		}
	}
}

// WithSequence sets the routine every new session walks.
func WithSequence(seq *library.Sequence) Option {
	return func(s *Service) {
		if seq != nil {
			s.sequence = seq
		}
	}
}

// WithScorer sets the scorer shared by search and sessions.
func WithScorer(scorer Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithLibraryThreshold sets the threshold a best match must beat.
func WithLibraryThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.libraryThreshold = threshold
		}
	}
}

// WithSequenceThreshold sets the threshold a routine step must beat.
func WithSequenceThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.sequenceThreshold = threshold
		}
	}
}

// WithParallelSearch scans the library with workers goroutines. workers <= 0
// uses GOMAXPROCS.
func WithParallelSearch(workers int) Option {
	return func(s *Service) {
		s.parallelSearch = true
		s.searchWorkers = workers
	}
}

// WithWorkerCount sets the number of frame workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of each worker queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the number of frame ids remembered for dedupe.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSessionTTL sets how long an idle session lives. Zero keeps sessions
// until they are deleted.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithPublisher sets where motion events are sent.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithHistory serves session events from a durable store instead of the
// in-memory tail.
func WithHistory(h HistoryReader) Option {
	return func(s *Service) {
		if h != nil {
			s.history = h
		}
	}
}

// WithClock sets the time source for sessions and events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(lg logger.Logger) Option {
	return func(s *Service) {
		if lg != nil {
			s.logger = lg
		}
	}
}
