package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it should be created on its own registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "posematch")
			})
		})

		Convey("When creating two managers with custom options on separate registries", func() {
			Convey("Then neither registration should panic", func() {
				So(func() {
					NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithNamespace("a"))
					NewManager(
						WithPrometheusRegistry(prometheus.NewRegistry()),
						WithNamespace("b"),
						WithSubsystem("test"),
						WithHistogramBuckets([]float64{1, 2, 3}),
						WithConstLabels(map[string]string{"env": "test"}),
					)
				}, ShouldNotPanic)
			})
		})

		Convey("When passing empty values to options", func() {
			m := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(nil))

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "posematch")
				So(m.subsystem, ShouldEqual, "core")
				So(m.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording matching metrics", func() {
			before := testutil.ToFloat64(globalManager.targetsReached)
			RecordTargetReached()
			RecordTargetReached()

			Convey("Then the counter should increase", func() {
				So(testutil.ToFloat64(globalManager.targetsReached)-before, ShouldEqual, 2)
			})
		})

		Convey("When recording labelled counters", func() {
			before := testutil.ToFloat64(globalManager.framesScored.WithLabelValues("rejected"))
			RecordFrameScored("rejected")

			Convey("Then only the labelled series should change", func() {
				So(testutil.ToFloat64(globalManager.framesScored.WithLabelValues("rejected"))-before, ShouldEqual, 1)
			})
		})

		Convey("When setting gauges", func() {
			UpdateLibrarySize(12)
			UpdateSequenceLength(4)
			UpdateActiveSessions(3)

			Convey("Then they should report the last value", func() {
				So(testutil.ToFloat64(globalManager.librarySize), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.sequenceLength), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.activeSessions), ShouldEqual, 3)
			})
		})

		Convey("When recording everything else", func() {
			So(func() {
				RecordScoringLatency(3)
				RecordSequenceCompleted()
				RecordBestMatch("match")
				RecordSearchLatency(1.5)
				RecordLoaderSkipped("library")
				UpdateQueueSize(1)
				RecordQueueEnqueue()
				RecordQueueRejected("full")
				RecordFrameDuplicate()
				UpdateWorkerCount(2)
				RecordPublished("log", "ok")
				RecordHTTPRequest("match", "POST", "200")
				RecordHTTPRequestDuration("match", "POST", "200", 2)
				RecordErrorByComponent("api", "bad_request")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
			}, ShouldNotPanic)

			Convey("Then the registry should expose the namespaced families", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				joined := strings.Join(names, ",")
				So(joined, ShouldContainSubstring, "posematch_core_targets_reached_total")
				So(joined, ShouldContainSubstring, "posematch_core_best_match_total")
				So(joined, ShouldContainSubstring, "posematch_core_http_requests_total")
			})
		})
	})
}
