package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(renderSeconds, renderFailures) }

var renderSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "render_duration_seconds",
		Help:    "Wall time of manim renders.",
		Buckets: []float64{5, 15, 30, 60, 120, 180, 300, 600},
	},
)

var renderFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "render_failures_total",
		Help: "Render failures by reason.",
	},
	[]string{"reason"}, // 'exit', 'timeout', 'no_output'
)

func ObserveRender(seconds float64) { renderSeconds.Observe(seconds) }

func IncRenderFailure(reason string) { renderFailures.WithLabelValues(norm(reason)).Inc() }
