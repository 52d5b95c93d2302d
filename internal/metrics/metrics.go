package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the login defense pipeline and donor search.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LoginAttempts    *prometheus.CounterVec
	DefenseDecisions *prometheus.CounterVec
	LockoutsCreated  *prometheus.CounterVec
	IPsBlacklisted   *prometheus.CounterVec
	AlertsEmitted    *prometheus.CounterVec
	DonorSearchCells prometheus.Histogram
}

// New registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donorguard_login_attempts_total",
			Help: "Recorded login attempts by outcome",
		}, []string{"outcome"}), // outcome: "success", "failure"

		DefenseDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donorguard_defense_decisions_total",
			Help: "Login defense decisions by reason",
		}, []string{"reason"}),

		LockoutsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donorguard_lockouts_created_total",
			Help: "Account lockouts created by level and scope",
		}, []string{"level", "scope"}),

		IPsBlacklisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donorguard_ip_blacklisted_total",
			Help: "IP blacklist entries created by severity and origin",
		}, []string{"severity", "origin"}),

		AlertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donorguard_admin_alerts_total",
			Help: "Admin alerts persisted by type and severity",
		}, []string{"type", "severity"}),

		DonorSearchCells: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "donorguard_donor_search_cells",
			Help:    "Number of geohash cells queried per donor search",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
	}
}

func (m *Metrics) IncrementAttempt(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementDecision(reason string) {
	if m != nil {
		m.DefenseDecisions.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementLockout(level int, scope string) {
	if m != nil {
		m.LockoutsCreated.WithLabelValues(levelLabel(level), scope).Inc()
	}
}

func (m *Metrics) IncrementBlacklist(severity, origin string) {
	if m != nil {
		m.IPsBlacklisted.WithLabelValues(severity, origin).Inc()
	}
}

func (m *Metrics) IncrementAlert(alertType, severity string) {
	if m != nil {
		m.AlertsEmitted.WithLabelValues(alertType, severity).Inc()
	}
}

func (m *Metrics) ObserveSearchCells(n int) {
	if m != nil {
		m.DonorSearchCells.Observe(float64(n))
	}
}

func levelLabel(level int) string {
	switch level {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	case 4:
		return "4"
	}
	return "unknown"
}
