package nutcgi

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/application/service"
	"github.com/owine/nut-cgi/src/config"
	"github.com/owine/nut-cgi/src/domain"
)

type ReleaseCmd struct {
	Source   string `arg:"--source,required" help:"go-getter URL of the build context"`
	Revision string `arg:"--revision,required" help:"commit SHA identifying the artifact"`
	Trigger  string `arg:"--trigger,required" help:"branch:NAME or tag:VERSION"`

	Registry   string `arg:"--registry,env:RELEASE_REGISTRY" default:"https://ghcr.io"`
	Repository string `arg:"--repository,env:RELEASE_REPOSITORY" default:"owine/nut-cgi"`

	Budget     time.Duration `arg:"--budget" default:"30m" help:"wall clock bound for the whole verification phase"`
	JobTimeout time.Duration `arg:"--job-timeout" default:"10m" help:"bound for each verification job"`

	TagPolicyFile string `arg:"--tag-policy" help:"YAML file with the trigger to tag mapping"`

	DbUrl string `arg:"--db-url,env:DATABASE_URL" help:"optional release ledger; empty disables persistence"`
	LogDb bool   `arg:"--log-db"`
}

// image is the full repository part of image references built and
// verified by this attempt.
func (cmd *ReleaseCmd) image() string {
	host := strings.TrimPrefix(strings.TrimPrefix(cmd.Registry, "https://"), "http://")
	return host + "/" + cmd.Repository
}

func (cmd *ReleaseCmd) Run(logger *zerolog.Logger) error {
	trigger, err := domain.ParseTrigger(cmd.Trigger)
	if err != nil {
		return err
	}

	tagPolicy := domain.DefaultTagPolicy()
	if cmd.TagPolicyFile != "" {
		if tagPolicy, err = domain.TagPolicyFromFile(cmd.TagPolicyFile); err != nil {
			return errors.WithMessagef(err, "Could not load tag policy from %q", cmd.TagPolicyFile)
		}
	}

	var attempts service.ReleaseAttemptService
	if cmd.DbUrl != "" {
		db, err := config.DBConnection(cmd.DbUrl, logger, cmd.LogDb)
		if err != nil {
			return errors.WithMessage(err, "Could not connect to the release ledger")
		}
		attempts = service.NewReleaseAttemptService(db, logger)
	}

	image := cmd.image()
	releases := service.NewReleaseService(
		service.NewDockerBuildService(image, logger),
		[]service.VerificationJob{
			service.NewFunctionalJob(image, cmd.JobTimeout, logger),
			service.NewHealthcheckJob(image, domain.ModeStrict, cmd.JobTimeout, logger),
			service.NewScanJob(image, cmd.JobTimeout, logger),
		},
		service.NewRegistryService(cmd.Registry, cmd.Repository, logger),
		tagPolicy,
		cmd.Budget,
		logger,
	)

	description := domain.BuildDescription{
		Source:   cmd.Source,
		Revision: cmd.Revision,
		Trigger:  trigger,
	}

	attempt := domain.ReleaseAttempt{
		ArtifactID: description.Revision,
		Trigger:    trigger.String(),
	}
	if attempts != nil {
		if err := attempts.Save(&attempt); err != nil {
			return err
		}
	}

	outcome, err := releases.Release(context.Background(), description)
	if err != nil {
		return err
	}

	if attempts != nil {
		now := time.Now().UTC()
		attempt.Status = outcome.Status
		attempt.Outcome = outcome
		attempt.FinishedAt = &now
		if err := attempts.End(&attempt); err != nil {
			return err
		}
	}

	// The structured outcome is the pipeline's interface: every job
	// result, not just the first failure.
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(outcome); err != nil {
		return err
	}

	if !outcome.Promoted {
		status, _ := outcome.Status.String()
		return errors.Errorf("Release not promoted: %s", status)
	}
	return nil
}
