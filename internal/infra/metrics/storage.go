package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(uploadsTotal, uploadBytes) }

var uploadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storage_uploads_total",
		Help: "Artifact uploads by kind and outcome.",
	},
	[]string{"kind", "success"}, // kind: 'video', 'sidecar'
)

var uploadBytes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storage_upload_bytes_total",
		Help: "Bytes uploaded per artifact kind.",
	},
	[]string{"kind"},
)

func IncUpload(kind string, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	uploadsTotal.WithLabelValues(norm(kind), s).Inc()
}

func AddUploadBytes(kind string, n int64) {
	if n > 0 {
		uploadBytes.WithLabelValues(norm(kind)).Add(float64(n))
	}
}
