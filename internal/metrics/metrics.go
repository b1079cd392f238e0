package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service collectors on a private registry. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AnalysisTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	CacheHits        *prometheus.CounterVec
	CacheMisses      prometheus.Counter
	UploadRejected   *prometheus.CounterVec
	ChatTurns        *prometheus.CounterVec
	ChatFragments    prometheus.Counter
	RelatedResults   prometheus.Histogram
	AudioTotal       *prometheus.CounterVec
	Workspaces       prometheus.Gauge
	QueueDepth       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnalysisTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperlens_analysis_total",
				Help: "Paper analyses by outcome",
			},
			[]string{"status"},
		),
		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "paperlens_analysis_duration_seconds",
				Help:    "Time spent producing an analysis",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperlens_cache_hits_total",
				Help: "Analysis cache hits",
			},
			[]string{"tier"},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "paperlens_cache_misses_total",
				Help: "Analysis cache misses",
			},
		),
		UploadRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperlens_upload_rejected_total",
				Help: "Uploads refused before analysis",
			},
			[]string{"reason"},
		),
		ChatTurns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperlens_chat_turns_total",
				Help: "Chat turns by outcome",
			},
			[]string{"status"},
		),
		ChatFragments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "paperlens_chat_fragments_total",
				Help: "Streamed reply fragments",
			},
		),
		RelatedResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "paperlens_related_results",
				Help:    "Related papers returned per search",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 6},
			},
		),
		AudioTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperlens_audio_total",
				Help: "Audio overview generations by outcome",
			},
			[]string{"status"},
		),
		Workspaces: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "paperlens_workspaces",
				Help: "Live workspaces",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "paperlens_queue_depth",
				Help: "Analyses waiting for a worker",
			},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AnalysisTotal,
		m.AnalysisDuration,
		m.CacheHits,
		m.CacheMisses,
		m.UploadRejected,
		m.ChatTurns,
		m.ChatFragments,
		m.RelatedResults,
		m.AudioTotal,
		m.Workspaces,
		m.QueueDepth,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveAnalysis(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.AnalysisDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) CacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(tier).Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.UploadRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ChatTurn(status string) {
	if m == nil {
		return
	}
	m.ChatTurns.WithLabelValues(status).Inc()
}

func (m *Metrics) ChatFragment() {
	if m == nil {
		return
	}
	m.ChatFragments.Inc()
}

func (m *Metrics) Related(n int) {
	if m == nil {
		return
	}
	m.RelatedResults.Observe(float64(n))
}

func (m *Metrics) Audio(status string) {
	if m == nil {
		return
	}
	m.AudioTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetWorkspaces(n int) {
	if m == nil {
		return
	}
	m.Workspaces.Set(float64(n))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
