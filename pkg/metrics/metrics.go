// Package metrics exposes Prometheus counters for code delivery, code
// verification and second-factor sign-in outcomes.
//
// A nil *Metrics is valid and records nothing, so services take it as an
// optional dependency.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-idp/pkg/smsgateway"
)

const namespace = "idp"

type Metrics struct {
	codesSent      *prometheus.CounterVec
	codesVerified  *prometheus.CounterVec
	twoFactorGates *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		codesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codes_sent_total",
			Help:      "Verification and sign-in codes handed to a delivery channel.",
		}, []string{"channel", "purpose", "outcome"}),
		codesVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codes_verified_total",
			Help:      "Codes checked, by purpose and result.",
		}, []string{"purpose", "result"}),
		twoFactorGates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "two_factor_signins_total",
			Help:      "Second-factor sign-in attempts by factor and resulting state.",
		}, []string{"factor", "state"}),
	}
	reg.MustRegister(m.codesSent, m.codesVerified, m.twoFactorGates)
	return m
}

// CodeSent records one delivery attempt. Gateway rejections are counted
// apart from transport or rendering failures.
func (m *Metrics) CodeSent(channel, purpose string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var gwErr *smsgateway.GatewayError
		if errors.As(err, &gwErr) {
			outcome = "gateway_rejected"
		}
	}
	m.codesSent.WithLabelValues(channel, purpose, outcome).Inc()
}

func (m *Metrics) CodeVerified(purpose string, valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.codesVerified.WithLabelValues(purpose, result).Inc()
}

func (m *Metrics) TwoFactorSignIn(factor, state string) {
	if m == nil {
		return
	}
	m.twoFactorGates.WithLabelValues(factor, state).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
