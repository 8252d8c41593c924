// Package metrics declares the Prometheus collectors exposed by every
// cmd/* binary's ops HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts successfully completed jobs by queue ("block"
	// or "log").
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_jobs_processed_total",
		Help: "Total number of jobs processed successfully.",
	}, []string{"queue"})

	// JobsFailed counts jobs that ended up dead-lettered.
	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_jobs_failed_total",
		Help: "Total number of jobs that were dead-lettered after processing failed.",
	}, []string{"queue"})

	// RedriveTotal counts jobs republished from the dead-letter store.
	RedriveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_redrive_total",
		Help: "Total number of dead-lettered jobs redriven back onto the queue.",
	}, []string{"job_type"})

	// BlockProcessDuration observes wall-clock seconds spent processing
	// one block job end to end.
	BlockProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_block_process_duration_seconds",
		Help:    "Time spent processing a single block job.",
		Buckets: prometheus.DefBuckets,
	})

	// LogProcessDuration observes wall-clock seconds spent processing
	// one log job end to end.
	LogProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_log_process_duration_seconds",
		Help:    "Time spent processing a single log job.",
		Buckets: prometheus.DefBuckets,
	})

	// BackfillRangeSize observes the batch size a backfill window
	// settled on, tracking how often adaptive shrinking kicks in.
	BackfillRangeSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_backfill_range_size",
		Help:    "Block range size used per getLogs call during backfill.",
		Buckets: []float64{10, 50, 100, 500, 1000, 2000, 5000},
	})
)
