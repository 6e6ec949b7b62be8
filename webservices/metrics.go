package webservices

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	renderOutcomeSuccess      = "success"
	renderOutcomeNoRoads      = "no_roads"
	renderOutcomeInvalidInput = "invalid_input"
	renderOutcomeError        = "error"
)

type RenderMetrics struct {
	registry       *prometheus.Registry
	rendersTotal   *prometheus.CounterVec
	renderDuration prometheus.Histogram
	rendersRunning prometheus.Gauge
}

// NewRenderMetrics creates the render metrics in their own registry, so that several services (or tests) can live in one process
func NewRenderMetrics() *RenderMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &RenderMetrics{
		registry: registry,
		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roadposter",
			Name:      "renders_total",
			Help:      "Total poster render requests, by outcome",
		}, []string{"outcome"}),
		renderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roadposter",
			Name:      "render_duration_seconds",
			Help:      "Duration of poster renders, including fetching the roads",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		rendersRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "roadposter",
			Name:      "renders_running",
			Help:      "Poster renders currently in progress",
		}),
	}
}

func (m *RenderMetrics) ObserveRender(outcome string, duration time.Duration) {
	m.rendersTotal.WithLabelValues(outcome).Inc()
	m.renderDuration.Observe(duration.Seconds())
}

func (m *RenderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
