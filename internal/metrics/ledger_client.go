package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerscan",
		Subsystem: "ledger_client",
		Name:      "operations_total",
		Help:      "Count of ledger gateway operations.",
	}, []string{"operation", "channel", "chaincode", "status"})
	ledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledgerscan",
		Subsystem: "ledger_client",
		Name:      "operation_duration_seconds",
		Help:      "Duration of ledger gateway operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "channel", "chaincode", "status"})
)

// LedgerClient tracks metrics for calls to the ledger gateway.
type LedgerClient struct {
	channel   string
	chaincode string
}

// NewLedgerClient constructs a metrics collector for ledger calls.
func NewLedgerClient(channel, chaincode string) *LedgerClient {
	return &LedgerClient{channel: orUnknown(channel), chaincode: orUnknown(chaincode)}
}

// Observe records a single ledger call outcome and duration.
func (m LedgerClient) Observe(operation string, err error, started time.Time) {
	st := status(err)
	ledgerRequestsTotal.WithLabelValues(operation, m.channel, m.chaincode, st).Inc()
	ledgerRequestDuration.WithLabelValues(operation, m.channel, m.chaincode, st).Observe(time.Since(started).Seconds())
}
