package service

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/domain"
)

// VerificationJob is a named, independently runnable check against a
// built artifact. Jobs never depend on each other's results within one
// release attempt, which is what allows the coordinator to fan them
// out concurrently. Run must express every failure through its result.
type VerificationJob interface {
	Name() string
	Timeout() time.Duration
	Run(context.Context, domain.Artifact) domain.VerificationResult
}

// commandJob passes iff its command exits zero. The report is the
// ANSI-stripped combined output.
type commandJob struct {
	logger  zerolog.Logger
	name    string
	timeout time.Duration
	argv    func(domain.Artifact) []string
}

func (self commandJob) Name() string           { return self.name }
func (self commandJob) Timeout() time.Duration { return self.timeout }

func (self commandJob) Run(ctx context.Context, artifact domain.Artifact) domain.VerificationResult {
	argv := self.argv(artifact)
	self.logger.Debug().Str("artifact", artifact.ID).Strs("argv", argv).Msg("Running")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	output, err := cmd.CombinedOutput()
	report := stripAnsi(output)

	if err != nil {
		self.logger.Info().Str("artifact", artifact.ID).Err(err).Msg("Job failed")
		return domain.VerificationResult{
			Job:    self.name,
			Report: fmt.Sprintf("%s: %s", err, report),
		}
	}
	return domain.VerificationResult{Job: self.name, Passed: true, Report: report}
}

// NewFunctionalJob exercises the CGI programs inside the candidate
// image by running the container's own self test entrypoint.
func NewFunctionalJob(image string, timeout time.Duration, logger *zerolog.Logger) VerificationJob {
	return commandJob{
		logger:  logger.With().Str("component", "FunctionalJob").Logger(),
		name:    "functional",
		timeout: timeout,
		argv: func(artifact domain.Artifact) []string {
			return []string{"docker", "run", "--rm", image + ":" + artifact.ID, "/usr/local/bin/self-test"}
		},
	}
}

// NewScanJob runs the vulnerability scanner against the candidate
// image. The scanner's exit code carries the verdict; findings end up
// in the report.
func NewScanJob(image string, timeout time.Duration, logger *zerolog.Logger) VerificationJob {
	return commandJob{
		logger:  logger.With().Str("component", "ScanJob").Logger(),
		name:    "vulnerability-scan",
		timeout: timeout,
		argv: func(artifact domain.Artifact) []string {
			return []string{
				"trivy", "image",
				"--severity", "CRITICAL",
				"--exit-code", "1",
				"--format", "json",
				image + ":" + artifact.ID,
			}
		},
	}
}

// healthcheckJob boots a container from the candidate image and drives
// the tier engine against it until it reports healthy or the job's
// timeout runs out. The engine itself never retries; this job is the
// external caller that owns the retry loop.
type healthcheckJob struct {
	logger   zerolog.Logger
	image    string
	mode     domain.Mode
	timeout  time.Duration
	interval time.Duration
	// newEngine builds a health service for the container's published
	// address. Injected so tests can point it at a stub service.
	newEngine func(url string) HealthService
}

func NewHealthcheckJob(image string, mode domain.Mode, timeout time.Duration, logger *zerolog.Logger) VerificationJob {
	contextualLogger := logger.With().Str("component", "HealthcheckJob").Logger()
	return &healthcheckJob{
		logger:   contextualLogger,
		image:    image,
		mode:     mode,
		timeout:  timeout,
		interval: 2 * time.Second,
		newEngine: func(url string) HealthService {
			prober := NewHTTPProber(url, &contextualLogger)
			classifier := domain.NewKeywordClassifier(domain.DefaultMarkers())
			return NewHealthService(DefaultTiers(prober, classifier, 5*time.Second), &contextualLogger)
		},
	}
}

func (self *healthcheckJob) Name() string           { return "healthcheck" }
func (self *healthcheckJob) Timeout() time.Duration { return self.timeout }

func (self *healthcheckJob) Run(ctx context.Context, artifact domain.Artifact) domain.VerificationResult {
	failed := func(report string) domain.VerificationResult {
		return domain.VerificationResult{Job: self.Name(), Report: report}
	}

	reference := self.image + ":" + artifact.ID
	containerId, err := exec.CommandContext(ctx, "docker", "run", "--detach", "--publish-all", reference).Output()
	if err != nil {
		return failed(fmt.Sprintf("could not start container from %s: %s", reference, err))
	}
	id := strings.TrimSpace(string(containerId))
	defer func() {
		// Plain Command: the job context may already be done.
		if err := exec.Command("docker", "rm", "--force", id).Run(); err != nil {
			self.logger.Warn().Err(err).Str("container", id).Msg("Could not remove container")
		}
	}()

	hostPort, err := exec.CommandContext(ctx, "docker", "port", id, "80/tcp").Output()
	if err != nil {
		return failed(fmt.Sprintf("could not resolve published port of %s: %s", id, err))
	}
	url := "http://" + strings.TrimSpace(strings.Split(string(hostPort), "\n")[0]) + "/cgi-bin/nut/upsstats.cgi"

	engine := self.newEngine(url)

	var report domain.HealthReport
	for {
		report = engine.Evaluate(ctx, self.mode)
		if report.Overall == domain.Healthy {
			return domain.VerificationResult{Job: self.Name(), Passed: true, Report: report.Summary()}
		}

		select {
		case <-ctx.Done():
			return failed(report.Summary())
		case <-time.After(self.interval):
		}
	}
}
