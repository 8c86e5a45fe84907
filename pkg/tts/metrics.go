package tts

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SynthQueryTime *prometheus.HistogramVec
	SynthErrors    *prometheus.CounterVec
}

var metrics = &Metrics{
	SynthQueryTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "tts",
		Name:      "request_seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"provider"}),
	SynthErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "tts",
		Name:      "errors_total",
	}, []string{"provider", "err_code"}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.SynthQueryTime)
	reg.MustRegister(metrics.SynthErrors)
}
