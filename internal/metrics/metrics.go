// Package metrics holds the Prometheus collectors exported by handtrace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesAnalyzedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "handtrace_frames_analyzed_total",
		Help: "Total number of frames run through the hand analyzer",
	})

	HandsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handtrace_hands_detected_total",
		Help: "Total number of detected hands, by side after mirror correction",
	}, []string{"side"})

	HandResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handtrace_hand_resets_total",
		Help: "Number of times a tracked hand was lost and its running state discarded",
	}, []string{"side"})

	DetectorErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "handtrace_detector_errors_total",
		Help: "Total number of failed detector calls",
	})

	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "handtrace_render_duration_seconds",
		Help:    "Time spent rendering an overlay",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"kind"})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handtrace_sessions_total",
		Help: "Number of finished analysis sessions, by final status",
	}, []string{"status"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "handtrace_active_sessions",
		Help: "Number of analysis sessions currently running",
	})

	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "handtrace_live_subscribers",
		Help: "Number of connected live record subscribers",
	})
)
