// ABOUTME: Prometheus collectors for the authenticated gateway
// ABOUTME: Counts refresh exchanges, coalesced waiters, reactive retries and session teardowns

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh triggers
const (
	TriggerProactive = "proactive"
	TriggerReactive  = "reactive"
	TriggerKeepAlive = "keepalive"
)

// Refresh outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	// OutcomeReused means the session had already been refreshed and no exchange was made
	OutcomeReused  = "reused"
)

// Gateway holds the collectors. A nil *Gateway records nothing.
type Gateway struct {
	registry *prometheus.Registry

	refreshes *prometheus.CounterVec
	waiters   *prometheus.CounterVec
	retries   prometheus.Counter
	teardowns *prometheus.CounterVec
	inFlight  prometheus.Gauge
}

// New registers the gateway collectors on a fresh registry.
func New() *Gateway {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Gateway{
		registry: reg,
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "gateway",
			Name:      "token_refreshes_total",
			Help:      "Token refreshes by trigger and outcome; reused means no exchange was needed.",
		}, []string{"trigger", "outcome"}),
		waiters: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "gateway",
			Name:      "refresh_waiters_total",
			Help:      "Callers that joined an in-flight refresh instead of starting one.",
		}, []string{"trigger"}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "gateway",
			Name:      "unauthorized_retries_total",
			Help:      "Requests resent once after a 401.",
		}),
		teardowns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "gateway",
			Name:      "session_teardowns_total",
			Help:      "Sessions destroyed, by reason.",
		}, []string{"reason"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "courier",
			Subsystem: "gateway",
			Name:      "refresh_in_flight",
			Help:      "1 while a token exchange is running.",
		}),
	}
}

func (g *Gateway) RefreshStarted() {
	if g == nil {
		return
	}
	g.inFlight.Set(1)
}

func (g *Gateway) RefreshFinished(trigger, outcome string) {
	if g == nil {
		return
	}
	g.inFlight.Set(0)
	g.refreshes.WithLabelValues(trigger, outcome).Inc()
}

func (g *Gateway) WaiterJoined(trigger string) {
	if g == nil {
		return
	}
	g.waiters.WithLabelValues(trigger).Inc()
}

func (g *Gateway) Retried() {
	if g == nil {
		return
	}
	g.retries.Inc()
}

func (g *Gateway) SessionCleared(reason string) {
	if g == nil {
		return
	}
	g.teardowns.WithLabelValues(reason).Inc()
}

// Registry exposes the underlying registry (for tests and custom exporters).
func (g *Gateway) Registry() *prometheus.Registry {
	return g.registry
}

// Handler serves the collectors in the Prometheus text format.
func (g *Gateway) Handler() http.Handler {
	return promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{})
}
