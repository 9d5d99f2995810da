package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/domain"
)

// ReleaseService drives one release attempt end to end: build the
// candidate, fan out the verification jobs, join all results, and only
// then decide. Promotion never happens before every job result has
// been observed.
type ReleaseService interface {
	// Release returns an error only for an invalid description
	// (e.g. a version tag the tag policy cannot map). Operational
	// failures — build, verification, promotion — are expressed in
	// the outcome.
	Release(context.Context, domain.BuildDescription) (domain.ReleaseOutcome, error)
}

type releaseService struct {
	logger    zerolog.Logger
	builds    BuildService
	jobs      []VerificationJob
	registry  RegistryService
	tagPolicy domain.TagPolicy
	// budget bounds the whole attempt's verification phase; zero
	// means no bound. Exceeding it fails pending jobs rather than
	// promoting with incomplete information.
	budget time.Duration
}

func NewReleaseService(
	builds BuildService,
	jobs []VerificationJob,
	registry RegistryService,
	tagPolicy domain.TagPolicy,
	budget time.Duration,
	logger *zerolog.Logger,
) ReleaseService {
	return &releaseService{
		logger:    logger.With().Str("component", "ReleaseService").Logger(),
		builds:    builds,
		jobs:      jobs,
		registry:  registry,
		tagPolicy: tagPolicy,
		budget:    budget,
	}
}

func (self releaseService) Release(ctx context.Context, description domain.BuildDescription) (domain.ReleaseOutcome, error) {
	outcome := domain.ReleaseOutcome{ArtifactID: description.Revision}

	// The tag mapping is deterministic configuration; resolve it up
	// front so a bad trigger never wastes a build.
	tags, err := self.tagPolicy.TagsFor(description.Trigger)
	if err != nil {
		return outcome, err
	}

	artifact, buildReport, err := self.builds.Build(ctx, description)
	outcome.BuildReport = buildReport
	if err != nil {
		self.logger.Error().Err(err).Str("revision", description.Revision).Msg("Build failed")
		outcome.Status = domain.ReleaseBuildFailed
		return outcome, nil
	}

	outcome.JobResults = self.verify(ctx, artifact)

	for _, result := range outcome.JobResults {
		if !result.Passed {
			self.logger.Info().
				Str("artifact", artifact.ID).
				Strs("failed", outcome.FailedJobs()).
				Msg("Verification failed, artifact stays quarantined")
			outcome.Status = domain.ReleaseQuarantined
			return outcome, nil
		}
	}

	if err := self.registry.ApplyTags(ctx, &artifact, tags); err != nil {
		self.logger.Error().Err(err).Str("artifact", artifact.ID).Msg("Promotion failed")
		outcome.Status = domain.ReleaseQuarantined
		outcome.PromotionError = err.Error()
		return outcome, nil
	}

	outcome.Status = domain.ReleasePromoted
	outcome.Promoted = true
	outcome.AppliedTags = tags
	self.logger.Info().Str("artifact", artifact.ID).Strs("tags", tags).Msg("Promoted")
	return outcome, nil
}

type indexedResult struct {
	index  int
	result domain.VerificationResult
}

// verify fans the jobs out concurrently and joins all results. A
// panicking or hanging job fails alone; its siblings always complete
// and their results are always collected.
func (self releaseService) verify(ctx context.Context, artifact domain.Artifact) []domain.VerificationResult {
	results := make([]domain.VerificationResult, len(self.jobs))
	collected := make([]bool, len(self.jobs))

	// Buffered so late results of jobs that outlive the budget do not
	// leak their goroutines.
	resultCh := make(chan indexedResult, len(self.jobs))

	for i, job := range self.jobs {
		go func(i int, job VerificationJob) {
			resultCh <- indexedResult{i, self.runJob(ctx, job, artifact)}
		}(i, job)
	}

	var budgetCh <-chan time.Time
	if self.budget > 0 {
		timer := time.NewTimer(self.budget)
		defer timer.Stop()
		budgetCh = timer.C
	}

	pending := len(self.jobs)
	for pending > 0 {
		select {
		case r := <-resultCh:
			results[r.index] = r.result
			collected[r.index] = true
			pending -= 1
		case <-budgetCh:
			// Fail closed: a job still pending past the budget is a
			// failed job, never an ignored one.
			for i, job := range self.jobs {
				if !collected[i] {
					self.logger.Warn().Str("job", job.Name()).Msg("Job exceeded release budget")
					results[i] = domain.VerificationResult{
						Job:    job.Name(),
						Report: fmt.Sprintf("job did not complete within the release budget of %s", self.budget),
					}
				}
			}
			return results
		}
	}
	return results
}

func (self releaseService) runJob(ctx context.Context, job VerificationJob, artifact domain.Artifact) (result domain.VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			self.logger.Error().Str("job", job.Name()).Interface("panic", r).Msg("Job panicked")
			result = domain.VerificationResult{
				Job:    job.Name(),
				Report: fmt.Sprintf("job panicked: %v", r),
			}
		}
	}()

	jobCtx := ctx
	if timeout := job.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	self.logger.Debug().Str("job", job.Name()).Str("artifact", artifact.ID).Msg("Dispatching")
	result = job.Run(jobCtx, artifact)

	if jobCtx.Err() != nil && !result.Passed && result.Report == "" {
		result.Report = fmt.Sprintf("job timed out after %s", job.Timeout())
	}
	return
}
