// Package metrics defines the Prometheus counters for the OTP and auth flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	OTPSent          *prometheus.CounterVec
	OTPVerifications *prometheus.CounterVec
	AuthAttempts     *prometheus.CounterVec
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OTPSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskauth_otp_sent_total",
				Help: "OTP send requests by result",
			},
			[]string{"result"},
		),
		OTPVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskauth_otp_verifications_total",
				Help: "OTP verification attempts by result",
			},
			[]string{"result"},
		),
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskauth_auth_attempts_total",
				Help: "Signup and login attempts by operation and result",
			},
			[]string{"op", "result"},
		),
	}
	reg.MustRegister(m.OTPSent, m.OTPVerifications, m.AuthAttempts)
	return m
}

// NewRegistry returns a registry with the Go and process collectors plus the app counters.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (m *Metrics) OTPSend(result string) {
	if m == nil {
		return
	}
	m.OTPSent.WithLabelValues(result).Inc()
}

func (m *Metrics) OTPVerify(result string) {
	if m == nil {
		return
	}
	m.OTPVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) Auth(op, result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(op, result).Inc()
}
