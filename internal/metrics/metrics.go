package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arcfolio"

const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"
)

// Причины, по которым удалённый объект мог остаться без ссылки из документа
const (
	OrphanRemoval      = "removal"
	OrphanCascade      = "cascade"
	OrphanCompensation = "compensation"
)

var (
	BlobOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_operations_total",
			Help:      "Blob store calls by operation and result.",
		},
		[]string{"operation", "result"},
	)

	BlobOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blob_operation_duration_seconds",
			Help:      "Blob store call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	OrphanedBlobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_blobs_total",
			Help:      "Best-effort blob deletions that failed and were only logged.",
		},
		[]string{"reason"},
	)

	ProjectUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "project_updates_total",
			Help:      "Project change requests by outcome.",
		},
		[]string{"outcome"},
	)
)
