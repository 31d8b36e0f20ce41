package txproc

import (
	"context"
	"maps"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/gabapcia/txrelay/internal/txproc"

// ChainMetrics are the terminal outcome counters of one chain.
type ChainMetrics struct {
	Processed               int64   `json:"processed"`
	Successful              int64   `json:"successful"`
	Failed                  int64   `json:"failed"`
	Retried                 int64   `json:"retried"`
	AverageProcessingTimeMs float64 `json:"average_processing_time_ms"`
}

// TransactionMetrics aggregates terminal outcomes. Every transaction counts
// once in TotalProcessed; Retried counts retry attempts.
type TransactionMetrics struct {
	TotalProcessed          int64                   `json:"total_processed"`
	Successful              int64                   `json:"successful"`
	Failed                  int64                   `json:"failed"`
	Retried                 int64                   `json:"retried"`
	AverageProcessingTimeMs float64                 `json:"average_processing_time_ms"`
	Chains                  map[string]ChainMetrics `json:"chains"`
}

type metrics struct {
	mu     sync.Mutex
	totals TransactionMetrics

	outcomes       metric.Int64Counter
	retries        metric.Int64Counter
	processingTime metric.Float64Histogram
}

func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)

	outcomes, _ := meter.Int64Counter("txproc.transactions",
		metric.WithDescription("Transactions that reached a terminal outcome."))
	retries, _ := meter.Int64Counter("txproc.retries",
		metric.WithDescription("Transaction broadcast retries."))
	processingTime, _ := meter.Float64Histogram("txproc.processing_time",
		metric.WithDescription("Time spent broadcasting a transaction."),
		metric.WithUnit("ms"))

	return &metrics{
		totals:         TransactionMetrics{Chains: make(map[string]ChainMetrics)},
		outcomes:       outcomes,
		retries:        retries,
		processingTime: processingTime,
	}
}

// runningAverage folds sample into avg, which already averages n-1 samples.
func runningAverage(avg float64, n int64, sample float64) float64 {
	return avg + (sample-avg)/float64(n)
}

func (m *metrics) terminal(ctx context.Context, chainID string, success bool, processingMs int64) {
	m.mu.Lock()
	m.totals.TotalProcessed++
	chain := m.totals.Chains[chainID]
	chain.Processed++
	if success {
		m.totals.Successful++
		chain.Successful++
	} else {
		m.totals.Failed++
		chain.Failed++
	}
	m.totals.AverageProcessingTimeMs = runningAverage(m.totals.AverageProcessingTimeMs, m.totals.TotalProcessed, float64(processingMs))
	chain.AverageProcessingTimeMs = runningAverage(chain.AverageProcessingTimeMs, chain.Processed, float64(processingMs))
	m.totals.Chains[chainID] = chain
	m.mu.Unlock()

	outcome := "failure"
	if success {
		outcome = "success"
	}
	attrs := metric.WithAttributes(
		attribute.String("transaction.chain_id", chainID),
		attribute.String("transaction.outcome", outcome),
	)
	m.outcomes.Add(ctx, 1, attrs)
	m.processingTime.Record(ctx, float64(processingMs), attrs)
}

func (m *metrics) retried(ctx context.Context, chainID string) {
	m.mu.Lock()
	m.totals.Retried++
	chain := m.totals.Chains[chainID]
	chain.Retried++
	m.totals.Chains[chainID] = chain
	m.mu.Unlock()

	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("transaction.chain_id", chainID)))
}

func (m *metrics) snapshot() TransactionMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.totals
	out.Chains = maps.Clone(m.totals.Chains)
	return out
}
