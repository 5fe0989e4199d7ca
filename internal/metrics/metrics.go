// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cleanhome_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "status"},
	)

	// action: completed, uncompleted
	CompletionToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanhome_completion_toggles_total",
			Help: "Completion toggles applied to the ledger",
		},
		[]string{"action"},
	)

	MalformedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cleanhome_malformed_records_total",
			Help: "Completion records dropped while loading history",
		},
	)

	SkippedTasks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cleanhome_scheduler_skipped_tasks_total",
			Help: "Tasks skipped by the scheduler because of an unparseable frequency",
		},
	)

	MonthExpansionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cleanhome_month_expansion_seconds",
			Help:    "Time spent expanding the catalog over a month",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~400ms
		},
	)

	// direction: out, in
	MirrorSnapshots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanhome_mirror_snapshots_total",
			Help: "Snapshots exchanged with the remote mirror",
		},
		[]string{"collection", "direction"},
	)

	MirrorClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cleanhome_mirror_clients",
			Help: "Connected mirror websocket clients",
		},
	)

	// status: sent, failed, gone
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanhome_reminders_total",
			Help: "Reminder push notifications by outcome",
		},
		[]string{"status"},
	)
)

func RecordHTTPRequest(method, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, status).Observe(d.Seconds())
}

func IncrementToggle(completed bool) {
	action := "uncompleted"
	if completed {
		action = "completed"
	}
	CompletionToggles.WithLabelValues(action).Inc()
}

func IncrementMirrorSnapshot(collection, direction string) {
	MirrorSnapshots.WithLabelValues(collection, direction).Inc()
}

func IncrementReminder(status string) {
	RemindersSent.WithLabelValues(status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
