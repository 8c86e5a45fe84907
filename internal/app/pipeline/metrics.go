package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	QueueDepth      prometheus.Gauge
	ChunksProcessed *prometheus.CounterVec
}

var metrics = &Metrics{
	QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "pipeline",
		Name:      "queue_depth",
	}),
	ChunksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "pipeline",
		Name:      "chunks_processed_total",
	}, []string{"status"}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.QueueDepth)
	reg.MustRegister(metrics.ChunksProcessed)
}
