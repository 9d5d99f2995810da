package component

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/application/service"
	"github.com/owine/nut-cgi/src/config"
	"github.com/owine/nut-cgi/src/domain"
)

// HealthMonitor re-evaluates readiness on an interval and exports the
// point-in-time result as gauges. It keeps no history; the counters
// only exist so rate() over them shows how often evaluations flip.
type HealthMonitor struct {
	Logger        zerolog.Logger
	HealthService service.HealthService
	Monitoring    *config.Monitoring
	Modes         []domain.Mode
	Interval      time.Duration
}

func (self *HealthMonitor) Start(ctx context.Context) error {
	self.Logger.Info().Dur("interval", self.Interval).Msg("Starting")

	ticker := time.NewTicker(self.Interval)
	defer ticker.Stop()

	self.observe(ctx)
	for {
		select {
		case <-ctx.Done():
			self.Logger.Debug().Msg("context was cancelled")
			return nil
		case <-ticker.C:
			self.observe(ctx)
		}
	}
}

func (self *HealthMonitor) observe(ctx context.Context) {
	for _, mode := range self.Modes {
		report := self.HealthService.Evaluate(ctx, mode)

		modeStr, _ := mode.String()
		overallStr, _ := report.Overall.String()

		value := 0.0
		if report.Overall == domain.Healthy {
			value = 1
		}
		self.Monitoring.HealthStatus.WithLabelValues(modeStr).Set(value)
		self.Monitoring.EvaluationsTotal.WithLabelValues(modeStr, overallStr).Inc()
		if failure := report.FirstFailure(); failure != nil {
			self.Monitoring.TierFailuresTotal.WithLabelValues(failure.Tier).Inc()
			self.Logger.Info().
				Str("mode", modeStr).
				Str("tier", failure.Tier).
				Str("detail", failure.Detail).
				Msg("Unhealthy")
		}
	}
}
