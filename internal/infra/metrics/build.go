package metrics

import "github.com/prometheus/client_golang/prometheus"

// Populated via -ldflags "-X qa-explainer-video/internal/infra/metrics.Version=..."
var (
	Version = "dev"
	Commit  = "none"
)

func init() {
	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata; value is always 1.",
		},
		[]string{"version", "commit"},
	)
	buildInfo.WithLabelValues(Version, Commit).Set(1)
	register(buildInfo)
}
