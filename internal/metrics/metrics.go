// Package metrics exposes the bridge's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsActive  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionsEnded   prometheus.Counter

	IngressFrames  prometheus.Counter
	EgressFrames   prometheus.Counter
	FrameErrors    prometheus.Counter
	TracksAttached prometheus.Counter

	CallsDialed prometheus.Counter
	CallsFailed prometheus.Counter
}

// New registers all collectors on reg. Pass a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_sessions_active",
			Help: "Number of currently active bridge sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_sessions_started_total",
			Help: "Total bridge sessions started",
		}),
		SessionsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_sessions_ended_total",
			Help: "Total bridge sessions torn down",
		}),
		IngressFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_ingress_frames_total",
			Help: "Frames forwarded telephony to room",
		}),
		EgressFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_egress_frames_total",
			Help: "Frames forwarded room to telephony",
		}),
		FrameErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_frame_errors_total",
			Help: "Frames dropped due to decode or conversion errors",
		}),
		TracksAttached: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_remote_tracks_attached_total",
			Help: "Remote audio tracks given an egress pump",
		}),
		CallsDialed: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_calls_dialed_total",
			Help: "Outbound calls successfully dispatched",
		}),
		CallsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_calls_failed_total",
			Help: "Outbound call attempts rejected or failed",
		}),
	}
}
