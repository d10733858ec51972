// Package metrics exposes application metrics collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanCycleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerscan",
		Subsystem: "scanner",
		Name:      "cycles_total",
		Help:      "Count of scan cycles by final state.",
	}, []string{"channel", "chaincode", "state", "status"})

	scanCycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledgerscan",
		Subsystem: "scanner",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of scan cycles.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"channel", "chaincode", "state"})

	scanBlockTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerscan",
		Subsystem: "scanner",
		Name:      "blocks_total",
		Help:      "Count of processed blocks.",
	}, []string{"channel", "chaincode", "status"})

	scanBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledgerscan",
		Subsystem: "scanner",
		Name:      "block_duration_seconds",
		Help:      "Duration of fetching, classifying and writing a single block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"channel", "chaincode", "status"})

	scanDocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerscan",
		Subsystem: "scanner",
		Name:      "documents_total",
		Help:      "Count of index documents written for committed blocks.",
	}, []string{"channel", "chaincode"})

	scanCheckpointHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ledgerscan",
		Subsystem: "scanner",
		Name:      "checkpoint_height",
		Help:      "Last block height committed to the checkpoint.",
	}, []string{"channel", "chaincode"})
)

// Scanner tracks metrics for the scan cycle.
type Scanner struct {
	channel   string
	chaincode string
}

// NewScanner constructs a Scanner with sane defaults.
func NewScanner(channel, chaincode string) *Scanner {
	return &Scanner{channel: orUnknown(channel), chaincode: orUnknown(chaincode)}
}

// ObserveCycle records the outcome and duration of one scan cycle.
func (m Scanner) ObserveCycle(state string, err error, started time.Time) {
	scanCycleTotal.WithLabelValues(m.channel, m.chaincode, state, status(err)).Inc()
	scanCycleDuration.WithLabelValues(m.channel, m.chaincode, state).
		Observe(time.Since(started).Seconds())
}

// ObserveBlock records processing of a single block.
func (m Scanner) ObserveBlock(err error, _ int64, documents int, started time.Time) {
	st := status(err)
	scanBlockTotal.WithLabelValues(m.channel, m.chaincode, st).Inc()
	scanBlockDuration.WithLabelValues(m.channel, m.chaincode, st).
		Observe(time.Since(started).Seconds())
	if err == nil {
		scanDocumentsTotal.WithLabelValues(m.channel, m.chaincode).Add(float64(documents))
	}
}

// SetCheckpoint publishes the committed checkpoint height.
func (m Scanner) SetCheckpoint(height int64) {
	scanCheckpointHeight.WithLabelValues(m.channel, m.chaincode).Set(float64(height))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
