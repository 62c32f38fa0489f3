// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnimationsTotal counts finished animation sessions by result kind ("ok" or a failure kind).
	AnimationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zukku",
		Name:      "animations_total",
		Help:      "Animation sessions by result",
	}, []string{"result"})

	// AnimationDuration tracks wall-clock time from recorder start to STOPPED.
	AnimationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "zukku",
		Name:      "animation_duration_seconds",
		Help:      "Wall-clock duration of animation sessions",
		Buckets:   []float64{0.5, 1, 2, 4, 6, 8, 12, 20, 30},
	})

	FramesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zukku",
		Name:      "frames_rendered_total",
		Help:      "Frames drawn onto render surfaces",
	})

	ChunksEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zukku",
		Name:      "recorder_chunks_total",
		Help:      "Non-empty encoded chunks collected by recorders",
	})

	RecorderBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zukku",
		Name:      "recorder_bytes_total",
		Help:      "Encoded bytes collected by recorders",
	})

	// ProviderRequests counts image provider attempts by result ("ok", "retry", "error").
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zukku",
		Name:      "provider_requests_total",
		Help:      "Image provider HTTP attempts by result",
	}, []string{"result"})

	ProviderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "zukku",
		Name:      "provider_request_duration_seconds",
		Help:      "Latency of image provider attempts",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9),
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zukku",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status",
	}, []string{"route", "method", "code"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zukku",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// RecordAnimation records the outcome of one animation session.
func RecordAnimation(result string, seconds float64) {
	AnimationsTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		AnimationDuration.Observe(seconds)
	}
}
