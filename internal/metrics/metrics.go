// Package metrics exposes Prometheus counters for authentication outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutcomeSuccess labels a successful operation. Failures are labelled with
// their error kind.
const OutcomeSuccess = "success"

// Auth holds the authentication counters. A nil *Auth records nothing.
type Auth struct {
	logins           *prometheus.CounterVec
	registrations    *prometheus.CounterVec
	tokenValidations *prometheus.CounterVec
	passwordChanges  *prometheus.CounterVec
	passwordRejected *prometheus.CounterVec
	tokensIssued     prometheus.Counter
}

// NewAuth creates the counters and registers them with reg.
// Panics if registration fails (following prometheus convention).
func NewAuth(reg prometheus.Registerer) *Auth {
	m := &Auth{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_login_total",
			Help: "Total number of login attempts by outcome",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_register_total",
			Help: "Total number of registration attempts by outcome",
		}, []string{"outcome"}),
		tokenValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_token_validation_total",
			Help: "Total number of token validations by outcome",
		}, []string{"outcome"}),
		passwordChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_password_change_total",
			Help: "Total number of password changes by outcome",
		}, []string{"outcome"}),
		passwordRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_password_rejected_total",
			Help: "Total number of candidate passwords rejected by the policy, by rule",
		}, []string{"rule"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authd_tokens_issued_total",
			Help: "Total number of session tokens issued",
		}),
	}

	reg.MustRegister(m.logins, m.registrations, m.tokenValidations, m.passwordChanges, m.passwordRejected, m.tokensIssued)
	return m
}

// RecordLogin counts a login attempt.
func (m *Auth) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// RecordRegistration counts a registration attempt.
func (m *Auth) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

// RecordTokenValidation counts a token validation.
func (m *Auth) RecordTokenValidation(outcome string) {
	if m == nil {
		return
	}
	m.tokenValidations.WithLabelValues(outcome).Inc()
}

// RecordPasswordChange counts a password change.
func (m *Auth) RecordPasswordChange(outcome string) {
	if m == nil {
		return
	}
	m.passwordChanges.WithLabelValues(outcome).Inc()
}

// RecordPasswordRejected counts a password that failed the named policy rule.
func (m *Auth) RecordPasswordRejected(rule string) {
	if m == nil {
		return
	}
	m.passwordRejected.WithLabelValues(rule).Inc()
}

// RecordTokenIssued counts an issued token.
func (m *Auth) RecordTokenIssued() {
	if m == nil {
		return
	}
	m.tokensIssued.Inc()
}
