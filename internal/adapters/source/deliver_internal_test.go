package source

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDeliver(t *testing.T) {
	Convey("Given a debounce timer that fired", t, func() {
		f := fired{path: "processed.json", gen: 3}
		fire := make(chan fired)
		done := make(chan struct{})

		Convey("When the loop is still running", func() {
			go deliver(f, fire, done)

			Convey("Then the file reaches it", func() {
				select {
				case got := <-fire:
					So(got, ShouldResemble, f)
				case <-time.After(time.Second):
					So("delivery timed out", ShouldBeEmpty)
				}
			})
		})

		Convey("When the loop has already returned", func() {
			close(done)
			returned := make(chan struct{})
			go func() {
				deliver(f, fire, done)
				close(returned)
			}()

			Convey("Then the callback gives up instead of blocking", func() {
				select {
				case <-returned:
				case <-time.After(time.Second):
					So("callback still blocked", ShouldBeEmpty)
				}
			})
		})
	})
}
