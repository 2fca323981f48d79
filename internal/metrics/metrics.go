package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patentrag"

// Retrieval outcome labels.
const (
	OutcomeHit   = "hit"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Metrics holds the pipeline collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	passagesIngested  prometheus.Counter
	pagesSkipped      prometheus.Counter
	documentsFailed   prometheus.Counter
	embeddingFailures prometheus.Counter
	retrievals        *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
}

// New registers all collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		passagesIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passages_ingested_total",
			Help:      "Passages written to the similarity index.",
		}),
		pagesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_skipped_total",
			Help:      "Pages that failed extraction or could not be chunked.",
		}),
		documentsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_failed_total",
			Help:      "Documents whose extraction or ingestion failed.",
		}),
		embeddingFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Embedding calls that produced no usable vectors.",
		}),
		retrievals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Retrievals by outcome.",
		}, []string{"outcome"}),
		retrievalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Time spent embedding the query and searching the index.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AddPassagesIngested counts passages written to the index.
func (m *Metrics) AddPassagesIngested(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.passagesIngested.Add(float64(n))
}

// AddPagesSkipped counts pages left out of a document.
func (m *Metrics) AddPagesSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pagesSkipped.Add(float64(n))
}

// DocumentFailed counts a document that was not ingested.
func (m *Metrics) DocumentFailed() {
	if m == nil {
		return
	}
	m.documentsFailed.Inc()
}

// EmbeddingFailed counts an embedding call without usable vectors.
func (m *Metrics) EmbeddingFailed() {
	if m == nil {
		return
	}
	m.embeddingFailures.Inc()
}

// ObserveRetrieval counts one retrieval and records its latency.
func (m *Metrics) ObserveRetrieval(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(outcome).Inc()
	m.retrievalDuration.Observe(took.Seconds())
}
