package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathertrack_api_calls_total",
			Help: "Total OpenWeatherMap API calls",
		},
		[]string{"endpoint", "status"},
	)

	WeatherAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weathertrack_api_latency_seconds",
			Help:    "OpenWeatherMap API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathertrack_cache_lookups_total",
			Help: "Response cache lookups by result",
		},
		[]string{"endpoint", "result"},
	)

	SnapshotsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathertrack_snapshots_saved_total",
			Help: "Snapshot writes by outcome (insert, update, error)",
		},
		[]string{"outcome"},
	)

	SnapshotsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weathertrack_snapshots_pruned_total",
			Help: "Snapshots deleted by retention cleanup",
		},
	)

	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weathertrack_cleanup_failures_total",
			Help: "Retention cleanup passes that failed",
		},
	)

	SnapshotsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weathertrack_snapshots_imported_total",
			Help: "Snapshots bulk-imported from backups or sample generation",
		},
	)

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathertrack_refresh_total",
			Help: "Location refreshes by status (ok, degraded, error)",
		},
		[]string{"status"},
	)

	ObservationFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathertrack_observation_flags_total",
			Help: "Quality flags raised on fetched observations",
		},
		[]string{"flag"},
	)
)
