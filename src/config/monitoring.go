package config

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Monitoring holds the point-in-time collectors exported by the
// monitor component. There is deliberately no histogram of past
// evaluations: the engine answers "is the service ready now".
type Monitoring struct {
	Registry *prometheus.Registry

	HealthStatus      *prometheus.GaugeVec
	EvaluationsTotal  *prometheus.CounterVec
	TierFailuresTotal *prometheus.CounterVec
}

func NewMonitoring() *Monitoring {
	self := &Monitoring{Registry: prometheus.NewRegistry()}

	self.HealthStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nutcgi",
		Name:      "health_status",
		Help:      "1 if the last evaluation in this mode was healthy, 0 otherwise.",
	}, []string{"mode"})

	self.EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutcgi",
		Name:      "health_evaluations_total",
		Help:      "Health evaluations by mode and overall outcome.",
	}, []string{"mode", "overall"})

	self.TierFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutcgi",
		Name:      "health_tier_failures_total",
		Help:      "First failing tier per evaluation.",
	}, []string{"tier"})

	self.Registry.MustRegister(
		self.HealthStatus,
		self.EvaluationsTotal,
		self.TierFailuresTotal,
	)

	return self
}
