// Package metrics exposes Prometheus instruments for issuance, rendering and verification.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Issuance outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeSkipped  = "skipped"
)

// Verification outcomes.
const (
	VerifyValid       = "valid"
	VerifyRevoked     = "revoked"
	VerifyNotFound    = "not_found"
	VerifyRateLimited = "rate_limited"
)

// Metrics groups the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	Issued         *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	RenderFailures prometheus.Counter
	Verifications  *prometheus.CounterVec
}

// New registers all instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Issued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventcert_certificates_issued_total",
			Help: "Certificate issuance attempts by outcome",
		}, []string{"outcome"}),
		RenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventcert_render_duration_seconds",
			Help:    "Duration of HTML to PDF renders",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		RenderFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventcert_render_failures_total",
			Help: "Renders that failed or timed out",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventcert_verifications_total",
			Help: "Public verification lookups by outcome",
		}, []string{"outcome"}),
	}
}

// IncIssued records an issuance outcome.
func (m *Metrics) IncIssued(outcome string) {
	if m == nil {
		return
	}
	m.Issued.WithLabelValues(outcome).Inc()
}

// ObserveRender records a render started at start.
func (m *Metrics) ObserveRender(start time.Time, err error) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.RenderFailures.Inc()
	}
}

// IncVerification records a verification outcome.
func (m *Metrics) IncVerification(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}
