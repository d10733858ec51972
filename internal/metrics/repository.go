package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	repositoryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerscan",
		Subsystem: "repository",
		Name:      "operations_total",
		Help:      "Count of storage operations.",
	}, []string{"backend", "operation", "status"})
	repositoryRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledgerscan",
		Subsystem: "repository",
		Name:      "operation_duration_seconds",
		Help:      "Duration of storage operations.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30},
	}, []string{"backend", "operation", "status"})
	repositoryBulkItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerscan",
		Subsystem: "repository",
		Name:      "bulk_items_total",
		Help:      "Count of bulk write items by outcome.",
	}, []string{"backend", "status"})
)

// Repository tracks metrics for a storage backend.
type Repository struct {
	backend string
}

// NewRepository creates a Repository metrics collector for the named backend.
func NewRepository(backend string) *Repository {
	return &Repository{backend: orUnknown(backend)}
}

// Observe records duration and status of a repository operation.
func (m Repository) Observe(operation string, err error, started time.Time) {
	st := status(err)
	repositoryRequestsTotal.WithLabelValues(m.backend, operation, st).Inc()
	repositoryRequestDuration.WithLabelValues(m.backend, operation, st).Observe(time.Since(started).Seconds())
}

// ObserveBulkItems records per-item outcomes of a bulk write.
func (m Repository) ObserveBulkItems(succeeded, failed int) {
	repositoryBulkItemsTotal.WithLabelValues(m.backend, "success").Add(float64(succeeded))
	repositoryBulkItemsTotal.WithLabelValues(m.backend, "error").Add(float64(failed))
}
