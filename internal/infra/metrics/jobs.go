package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsRequeuedTotal, jobsQueueDepth) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "render_jobs_processed_total",
		Help: "Total number of render jobs processed, labeled by final status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'requeued'
)

var jobsRequeuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "render_jobs_requeued_total",
		Help: "Render jobs put back on the queue after a retryable failure or stale claim.",
	},
)

var jobsQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "render_jobs_queue_depth",
		Help: "Number of render jobs currently pending.",
	},
)

func IncJob(status string) { jobsProcessedTotal.WithLabelValues(norm(status)).Inc() }

func IncRequeued(n int) { jobsRequeuedTotal.Add(float64(n)) }

func SetQueueDepth(n int) { jobsQueueDepth.Set(float64(n)) }
