package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsCollector holds the Prometheus counters for the API.
type metricsCollector struct {
	logins        *prometheus.CounterVec
	credits       prometheus.Counter
	creditedCoins prometheus.Counter
}

// newMetricsCollector creates the counters and registers them with reg.
func newMetricsCollector(reg prometheus.Registerer) *metricsCollector {
	c := &metricsCollector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamelab_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		credits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamelab_credits_total",
			Help: "Completed coin credit operations.",
		}),
		creditedCoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamelab_credited_coins_total",
			Help: "Total coins credited across all users.",
		}),
	}

	reg.MustRegister(c.logins, c.credits, c.creditedCoins)

	return c
}

// RecordLogin counts one login attempt.
func (c *metricsCollector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}

	c.logins.WithLabelValues(result).Inc()
}

// RecordCredit counts one completed credit and its amount.
func (c *metricsCollector) RecordCredit(amount int64) {
	c.credits.Inc()
	c.creditedCoins.Add(float64(amount))
}
