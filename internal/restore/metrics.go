package restore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shoprestore_restore_jobs_total",
		Help: "Restore jobs attempted, by kind and result",
	}, []string{"kind", "result"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shoprestore_restore_batch_duration_seconds",
		Help:    "Wall time of a restore batch from expansion to finalization",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shoprestore_restore_batches_total",
		Help: "Finished restore batches, by whether every job succeeded",
	}, []string{"result"})

	logDeleteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shoprestore_log_delete_failures_total",
		Help: "Consumed log entries whose deletion failed after a batch",
	})
)
