// Package metrics defines the Prometheus metrics exposed on the ops
// server. Grounded in indexer/pkg/metrics/metrics.go's promauto-vars
// style, renamed to this importer's domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kbo_importer_build_info",
			Help: "Build information of the registry importer",
		},
		[]string{"version", "commit", "date"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbo_importer_jobs_total",
			Help: "Total number of import jobs by terminal status",
		},
		[]string{"extract_type", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kbo_importer_job_duration_seconds",
			Help:    "Duration of import jobs from prepare to finalize",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		},
		[]string{"extract_type"},
	)

	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbo_importer_batches_total",
			Help: "Total number of batches processed",
		},
		[]string{"table", "operation", "status"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kbo_importer_batch_duration_seconds",
			Help:    "Duration of a single batch apply",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"table", "operation"},
	)

	BatchRowsAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbo_importer_batch_rows_affected_total",
			Help: "Total number of rows affected by applied batches",
		},
		[]string{"table", "operation"},
	)

	DatabaseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbo_importer_database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"status"},
	)

	StaleLocksReclaimed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbo_importer_stale_locks_reclaimed_total",
			Help: "Total number of stale batch locks reclaimed by the sweeper",
		},
		[]string{"table"},
	)

	ArchiveDownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kbo_importer_archive_download_duration_seconds",
			Help:    "Duration of archive downloads from blob storage",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
)
