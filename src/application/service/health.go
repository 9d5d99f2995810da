package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/domain"
)

type HealthService interface {
	// Evaluate never returns an error: "could not determine health"
	// is not a representable state. Every failure is classified into
	// the report.
	Evaluate(context.Context, domain.Mode) domain.HealthReport
}

type healthService struct {
	logger zerolog.Logger
	tiers  []Tier
}

func NewHealthService(tiers []Tier, logger *zerolog.Logger) HealthService {
	return &healthService{
		logger: logger.With().Str("component", "HealthService").Logger(),
		tiers:  tiers,
	}
}

func (self healthService) Evaluate(ctx context.Context, mode domain.Mode) domain.HealthReport {
	modeStr, _ := mode.String()
	self.logger.Debug().Str("mode", modeStr).Msg("Evaluating")

	report := domain.HealthReport{Mode: mode, Overall: domain.Healthy}
	snapshot := &Snapshot{}

	for _, tier := range self.tiers {
		if !tier.RequiredIn(mode) {
			continue
		}

		result := self.evaluateTier(ctx, tier, snapshot)
		report.TierResults = append(report.TierResults, result)

		if !result.Passed {
			// Later tiers would only report downstream symptoms of
			// the same root cause, so they are never run.
			report.Overall = domain.Unhealthy
			self.logger.Debug().
				Str("tier", result.Tier).
				Str("step", result.FailedStep).
				Str("detail", result.Detail).
				Msg("Tier failed, stopping evaluation")
			return report
		}
	}

	self.logger.Debug().Str("mode", modeStr).Int("tiers", len(report.TierResults)).Msg("Healthy")
	return report
}

func (self healthService) evaluateTier(ctx context.Context, tier Tier, snapshot *Snapshot) domain.TierResult {
	for _, step := range tier.Steps {
		result := runStep(ctx, step, snapshot)
		if !result.Passed {
			return domain.TierResult{
				Tier:       tier.Name,
				FailedStep: step.Name,
				Kind:       result.Kind,
				Detail:     result.Detail,
			}
		}
	}
	return domain.TierResult{Tier: tier.Name, Passed: true}
}

// runStep holds the no-panic boundary: whatever a step predicate does,
// the engine only ever sees a ProbeResult. A step with a timeout runs
// under a context bounded by it.
func runStep(ctx context.Context, step ProbeStep, snapshot *Snapshot) (result domain.ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.ProbeResult{
				Kind:   domain.InfrastructureError,
				Detail: fmt.Sprintf("probe step panicked: %v", r),
			}
		}
	}()

	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	return step.Run(ctx, snapshot)
}
