// Package metrics exposes Prometheus metrics for the license server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Activations counts activation attempts by result
	// (success, not_found, forbidden, auth_failure, limit_exceeded, error).
	Activations *prometheus.CounterVec
	// TokenVerifications counts download-token verifications by result.
	TokenVerifications *prometheus.CounterVec
	// TokensIssued counts issued download tokens.
	TokensIssued prometheus.Counter
	// TokensSwept counts expired tokens purged by the sweeper.
	TokensSwept prometheus.Counter
}

// New creates the server metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Activations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smliser_activations_total",
			Help: "License activation attempts by result.",
		}, []string{"result"}),
		TokenVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smliser_token_verifications_total",
			Help: "Download token verifications by result.",
		}, []string{"result"}),
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "smliser_tokens_issued_total",
			Help: "Download tokens issued.",
		}),
		TokensSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "smliser_tokens_swept_total",
			Help: "Expired download tokens purged by the sweeper.",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
