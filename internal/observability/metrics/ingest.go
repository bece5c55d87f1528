package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IngestMetrics struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	documents    *prometheus.CounterVec
	chunks       *prometheus.CounterVec
	vectors      *prometheus.CounterVec
	batches      *prometheus.CounterVec
	runsInFlight prometheus.Gauge
}

func NewIngestMetrics(service string) *IngestMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total ingestion runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lex",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Ingestion run duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	documents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "ingest",
			Name:      "documents_loaded_total",
			Help:      "Documents loaded across ingestion runs.",
		},
		[]string{"service"},
	)
	chunks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "ingest",
			Name:      "chunks_created_total",
			Help:      "Chunks produced across ingestion runs.",
		},
		[]string{"service"},
	)
	vectors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "ingest",
			Name:      "vectors_created_total",
			Help:      "Newly embedded vectors across ingestion runs.",
		},
		[]string{"service"},
	)
	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Upsert batches processed across ingestion runs.",
		},
		[]string{"service"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lex",
			Subsystem: "ingest",
			Name:      "runs_in_flight",
			Help:      "Number of ingestion runs currently executing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(runsTotal, runDuration, documents, chunks, vectors, batches, runsInFlight)

	return &IngestMetrics{
		registry:     registry,
		runsTotal:    runsTotal,
		runDuration:  runDuration,
		documents:    documents,
		chunks:       chunks,
		vectors:      vectors,
		batches:      batches,
		runsInFlight: runsInFlight,
	}
}

func (m *IngestMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IngestMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *IngestMetrics) FinishRun(service string, duration time.Duration, documentsLoaded, chunksCreated, newVectors, batchesProcessed int, err error) {
	m.runsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.runsTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	m.documents.WithLabelValues(service).Add(float64(documentsLoaded))
	m.chunks.WithLabelValues(service).Add(float64(chunksCreated))
	m.vectors.WithLabelValues(service).Add(float64(newVectors))
	m.batches.WithLabelValues(service).Add(float64(batchesProcessed))
}
