package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("engine"),
				WithMetricPrefix("x"),
				WithHistogramBuckets([]float64{1, 10}),
				WithMetricsEnabled(true),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the configured names", func() {
				So(manager, ShouldNotBeNil)

				manager.sessionsRecorded.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_engine_x_sessions_recorded_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When two managers share one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		SetEnabled(true)

		Convey("When recording engine queries", func() {
			before := testutil.ToFloat64(globalManager.queries.WithLabelValues("global", "scan"))
			RecordQuery("global", "scan")
			RecordQuery("global", "scan")
			RecordQueryLatency("global", 1.5)
			RecordQueryError("global", "validation")
			RecordStrategyFallback("global")

			Convey("Then the counter moves", func() {
				So(testutil.ToFloat64(globalManager.queries.WithLabelValues("global", "scan")), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.strategyFallback.WithLabelValues("global")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording is disabled", func() {
			before := testutil.ToFloat64(globalManager.sessionsRecorded)
			SetEnabled(false)
			RecordSessionRecorded()
			SetEnabled(true)

			Convey("Then counters stay put", func() {
				So(testutil.ToFloat64(globalManager.sessionsRecorded), ShouldEqual, before)
			})
		})

		Convey("When recording write path, store and cache metrics", func() {
			So(func() {
				RecordSessionRecorded()
				RecordSessionDuplicate()
				RecordSessionsErased(3)
				RecordSessionsErased(0)
				RecordStoreLatency("fetch_all", 2)
				RecordStoreError("fetch_all")
				UpdateStoreRecords(10)
				UpdateStorePlayers(4)
				RecordNameCacheHit()
				RecordNameCacheMiss()
				RecordNameCacheError()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.storePlayers), ShouldEqual, 4)
		})

		Convey("When recording HTTP and system metrics", func() {
			So(func() {
				RecordHTTPRequest("leaderboard_global", "GET", "200")
				RecordHTTPRequestDuration("leaderboard_global", "GET", "200", 4)
				RecordErrorByEndpoint("stats_create", "POST", "client_error")
				RecordErrorByType("client_error", "medium")
				RecordRateLimited("stats_create")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			RecordQuery("rank", "accelerated")
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			var names []string
			for _, f := range families {
				names = append(names, f.GetName())
			}
			Convey("Then only driftboard metrics are exposed", func() {
				So(len(names), ShouldBeGreaterThan, 0)
				for _, n := range names {
					So(strings.HasPrefix(n, "driftboard_"), ShouldBeTrue)
				}
			})
		})
	})
}

func TestSince(t *testing.T) {
	Convey("Since reports elapsed milliseconds", t, func() {
		start := time.Now().Add(-20 * time.Millisecond)
		So(Since(start), ShouldBeGreaterThanOrEqualTo, 20)
	})
}
