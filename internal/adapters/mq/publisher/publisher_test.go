package publisher_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/okian/posematch/internal/adapters/mq/publisher"
	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type failing struct{ closed bool }

func (f *failing) Publish(context.Context, model.MotionEvent) error { return errors.New("down") }
func (f *failing) Close() error                                     { f.closed = true; return nil }

type collecting struct{ got []model.MotionEvent }

func (c *collecting) Publish(_ context.Context, ev model.MotionEvent) error {
	c.got = append(c.got, ev)
	return nil
}
func (c *collecting) Close() error { return nil }

func sampleEvent() model.MotionEvent {
	return model.MotionEvent{
		ID:        "ev-1",
		SessionID: "s-1",
		Kind:      model.KindTargetReached,
		Index:     1,
		Label:     "arms_mid",
		Score:     0.04,
		NextIndex: 2,
		NextLabel: "arms_up",
		TS:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRedisPublisher(t *testing.T) {
	Convey("Given a Redis publisher backed by miniredis", t, func() {
		mr := miniredis.RunT(t)
		ctx := context.Background()
		pub, err := publisher.NewRedis(ctx, &redis.Options{Addr: mr.Addr()}, "")
		So(err, ShouldBeNil)
		defer pub.Close()

		So(pub.Channel(), ShouldEqual, "posematch:events")

		Convey("When an event is published to a subscriber", func() {
			sub, err := pub.Subscribe(ctx)
			So(err, ShouldBeNil)
			defer sub.Close()

			So(pub.Publish(ctx, sampleEvent()), ShouldBeNil)

			Convey("Then the subscriber receives the same event", func() {
				select {
				case ev := <-sub.Events():
					So(ev, ShouldResemble, sampleEvent())
				case <-time.After(2 * time.Second):
					t.Fatal("event not received")
				}
			})
		})

		Convey("When a foreign payload arrives on the channel", func() {
			sub, err := pub.Subscribe(ctx)
			So(err, ShouldBeNil)
			defer sub.Close()

			mr.Publish(pub.Channel(), "not json")

			Convey("Then it is reported on the error stream", func() {
				select {
				case err := <-sub.Errors():
					So(err, ShouldNotBeNil)
				case <-time.After(2 * time.Second):
					t.Fatal("decode error not reported")
				}
			})
		})
	})

	Convey("Given an unreachable Redis server", t, func() {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		Convey("Then the publisher cannot be created", func() {
			_, err := publisher.NewRedis(context.Background(), &redis.Options{Addr: addr}, "events")
			So(errors.Is(err, publisher.ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestLogAndFanout(t *testing.T) {
	Convey("Given a log publisher writing JSON", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithWriter(&buf), logger.WithFormat("json")), ShouldBeNil)
		pub := publisher.NewLog(logger.Named("events"))

		Convey("Then events are logged with their labels", func() {
			So(pub.Publish(context.Background(), sampleEvent()), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `"label":"arms_mid"`)
			So(buf.String(), ShouldContainSubstring, `"kind":"target_reached"`)
			So(pub.Close(), ShouldBeNil)
		})
	})

	Convey("Given a fanout with a failing child", t, func() {
		bad := &failing{}
		good := &collecting{}
		fan := publisher.NewFanout(bad, nil, good)

		Convey("When publishing", func() {
			err := fan.Publish(context.Background(), sampleEvent())

			Convey("Then healthy children still receive the event", func() {
				So(fan.Len(), ShouldEqual, 2)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "down")
				So(good.got, ShouldHaveLength, 1)
			})

			Convey("Then closing reaches every child", func() {
				So(fan.Close(), ShouldBeNil)
				So(bad.closed, ShouldBeTrue)
			})
		})
	})
}
