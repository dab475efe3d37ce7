package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/pkg/metrics"
)

const defaultChannel = "posematch:events"

// Redis publishes events as JSON on a pub/sub channel.
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, opts *redis.Options, channel string) (*Redis, error) {
	if channel == "" {
		channel = defaultChannel
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Redis{rdb: rdb, channel: channel}, nil
}

// Channel returns the pub/sub channel name.
func (r *Redis) Channel() string { return r.channel }

// Publish encodes ev and publishes it.
func (r *Redis) Publish(ctx context.Context, ev model.MotionEvent) error { //nolint:gocritic // hugeParam: events travel by value
	payload, err := json.Marshal(ev)
	if err != nil {
		metrics.RecordPublished("redis", "error")
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		metrics.RecordPublished("redis", "error")
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	metrics.RecordPublished("redis", "ok")
	return nil
}

// Subscription streams events received on the channel.
type Subscription struct {
	events <-chan model.MotionEvent
	errors <-chan error
	cancel context.CancelFunc
}

// Events returns the event stream. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan model.MotionEvent { return s.events }

// Errors returns payloads that could not be decoded.
func (s *Subscription) Errors() <-chan error { return s.errors }

// Close ends the subscription.
func (s *Subscription) Close() { s.cancel() }

// Subscribe listens on the channel until ctx is done or Close is called. It
// returns once the subscription is confirmed by the server.
func (r *Redis) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	events := make(chan model.MotionEvent, 16)
	errs := make(chan error, 16)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(events)
		defer close(errs)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev model.MotionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errs <- fmt.Errorf("decode event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}
				select {
				case events <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{events: events, errors: errs, cancel: cancel}, nil
}

// Close releases the client.
func (r *Redis) Close() error { return r.rdb.Close() }
