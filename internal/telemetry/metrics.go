package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus-метрики оркестрационного ядра.
//
// Регистрируются в default registry; экспорт — promhttp в cmd.
type Metrics struct {
	// JobsProcessed — обработанные jobs по kind и итоговому статусу.
	JobsProcessed *prometheus.CounterVec

	// JobDuration — длительность обработки job в секундах.
	JobDuration *prometheus.HistogramVec

	// StageDuration — длительность стадий sync pipeline.
	StageDuration *prometheus.HistogramVec

	// BreakerState — состояние breaker: 0 closed, 1 half-open, 2 open.
	BreakerState *prometheus.GaugeVec

	// ChunksSynthesized — синтезированные аудио-chunks по исходу.
	ChunksSynthesized *prometheus.CounterVec

	// QueueDepth — размер pending-очереди по kind.
	QueueDepth *prometheus.GaugeVec

	// ItemFallbacks — items, деградировавшие до fallback-значения, по стадии.
	ItemFallbacks *prometheus.CounterVec
}

// NewMetrics создаёт и регистрирует метрики.
func NewMetrics() *Metrics {
	return &Metrics{
		JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "news_jobs_processed_total",
			Help: "Jobs processed, by kind and terminal status.",
		}, []string{"kind", "status"}),

		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "news_job_duration_seconds",
			Help:    "Job processing duration.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"kind"}),

		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "news_stage_duration_seconds",
			Help:    "Sync pipeline stage duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"stage"}),

		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "news_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"breaker"}),

		ChunksSynthesized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "news_audio_chunks_total",
			Help: "Audio chunks synthesized, by outcome.",
		}, []string{"outcome"}),

		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "news_queue_depth",
			Help: "Pending jobs per queue.",
		}, []string{"kind"}),

		ItemFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "news_item_fallbacks_total",
			Help: "Per-item failures degraded to fallback values, by stage.",
		}, []string{"stage"}),
	}
}

// ObserveBreaker переводит состояние breaker в значение gauge.
func (m *Metrics) ObserveBreaker(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}
