package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec

	tierAttemptsTotal *prometheus.CounterVec
	escalationsTotal  *prometheus.CounterVec
	qualityScore      *prometheus.HistogramVec
	extractionCost    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragmcp",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragmcp",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragmcp",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragmcp",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document creation and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	tierAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragmcp",
			Subsystem: "extraction",
			Name:      "tier_attempts_total",
			Help:      "Total extraction tier attempts by tier and outcome.",
		},
		[]string{"service", "tier", "outcome"},
	)
	escalationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragmcp",
			Subsystem: "extraction",
			Name:      "escalations_total",
			Help:      "Total documents that escalated past the first tier.",
		},
		[]string{"service"},
	)
	qualityScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragmcp",
			Subsystem: "extraction",
			Name:      "quality_score",
			Help:      "Distribution of selected extraction quality scores by tier.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		},
		[]string{"service", "tier"},
	)
	extractionCost := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragmcp",
			Subsystem: "extraction",
			Name:      "cost_total",
			Help:      "Accumulated extraction cost across all attempts.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		processTotal, processDuration, processInFlight, queueLag,
		tierAttemptsTotal, escalationsTotal, qualityScore, extractionCost,
	)

	return &WorkerMetrics{
		registry:          registry,
		processTotal:      processTotal,
		processDuration:   processDuration,
		processInFlight:   processInFlight,
		queueLag:          queueLag,
		tierAttemptsTotal: tierAttemptsTotal,
		escalationsTotal:  escalationsTotal,
		qualityScore:      qualityScore,
		extractionCost:    extractionCost,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// ObserveExtraction records the tier trail of one completed extraction.
func (m *WorkerMetrics) ObserveExtraction(service string, result domain.ExtractionResult) {
	for _, attempt := range result.Attempts {
		outcome := "scored"
		if attempt.Tier == result.Selected.Tier {
			outcome = "selected"
		}
		m.tierAttemptsTotal.WithLabelValues(service, string(attempt.Tier), outcome).Inc()
	}
	if len(result.Attempts) > 1 {
		m.escalationsTotal.WithLabelValues(service).Inc()
	}
	m.qualityScore.WithLabelValues(service, string(result.Selected.Tier)).
		Observe(result.Selected.Quality.OverallScore)
	m.extractionCost.WithLabelValues(service).Add(result.TotalCost)
}
