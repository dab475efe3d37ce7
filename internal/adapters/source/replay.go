package source

import (
	"context"
	"time"

	"github.com/okian/posematch/internal/domain/library"
)

// Replay emits entries in order, one every interval, as if they were being
// written by the extractor. A zero interval emits as fast as the reader
// consumes. The stream is closed after the last entry or when ctx is done.
func Replay(ctx context.Context, entries []library.Entry, interval time.Duration) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)

		var tick <-chan time.Time
		if interval > 0 {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for i, e := range entries {
			if i > 0 && tick != nil {
				select {
				case <-tick:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- Item{Name: e.Label, Record: e.Record, TS: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
