package service

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/config"
	"github.com/owine/nut-cgi/src/domain"
	"github.com/owine/nut-cgi/src/domain/repository"
	"github.com/owine/nut-cgi/src/infrastructure/persistence"
)

// ReleaseAttemptService is the audit ledger of release attempts. It is
// optional: commands that run without a database pass no service and
// nothing is recorded.
type ReleaseAttemptService interface {
	WithQuerier(config.PgxIface) ReleaseAttemptService

	GetById(uuid.UUID) (domain.ReleaseAttempt, error)
	GetByArtifactId(string) ([]*domain.ReleaseAttempt, error)
	GetAll(*repository.Page) ([]*domain.ReleaseAttempt, error)
	Save(*domain.ReleaseAttempt) error
	End(*domain.ReleaseAttempt) error
}

type releaseAttemptService struct {
	logger                   zerolog.Logger
	releaseAttemptRepository repository.ReleaseAttemptRepository
}

func NewReleaseAttemptService(db config.PgxIface, logger *zerolog.Logger) ReleaseAttemptService {
	return &releaseAttemptService{
		logger:                   logger.With().Str("component", "ReleaseAttemptService").Logger(),
		releaseAttemptRepository: persistence.NewReleaseAttemptRepository(db),
	}
}

func (self releaseAttemptService) WithQuerier(querier config.PgxIface) ReleaseAttemptService {
	return &releaseAttemptService{
		logger:                   self.logger,
		releaseAttemptRepository: self.releaseAttemptRepository.WithQuerier(querier),
	}
}

func (self releaseAttemptService) GetById(id uuid.UUID) (attempt domain.ReleaseAttempt, err error) {
	self.logger.Trace().Str("id", id.String()).Msg("Getting release attempt by ID")
	attempt, err = self.releaseAttemptRepository.GetById(id)
	err = errors.WithMessagef(err, "Could not select existing release attempt by ID %q", id)
	return
}

func (self releaseAttemptService) GetByArtifactId(artifactId string) (attempts []*domain.ReleaseAttempt, err error) {
	self.logger.Trace().Str("artifact-id", artifactId).Msg("Getting release attempts by artifact ID")
	attempts, err = self.releaseAttemptRepository.GetByArtifactId(artifactId)
	err = errors.WithMessagef(err, "Could not select release attempts by artifact ID %q", artifactId)
	return
}

func (self releaseAttemptService) GetAll(page *repository.Page) (attempts []*domain.ReleaseAttempt, err error) {
	self.logger.Trace().Int("offset", page.Offset).Int("limit", page.Limit).Msg("Getting all release attempts")
	attempts, err = self.releaseAttemptRepository.GetAll(page)
	err = errors.WithMessagef(err, "Could not select existing release attempts with offset %d and limit %d", page.Offset, page.Limit)
	return
}

func (self releaseAttemptService) Save(attempt *domain.ReleaseAttempt) error {
	self.logger.Trace().Str("artifact-id", attempt.ArtifactID).Msg("Saving new release attempt")
	if err := self.releaseAttemptRepository.Save(attempt); err != nil {
		return errors.WithMessagef(err, "Could not insert release attempt")
	}
	self.logger.Trace().Str("id", attempt.ID.String()).Msg("Created release attempt")
	return nil
}

func (self releaseAttemptService) End(attempt *domain.ReleaseAttempt) error {
	self.logger.Trace().Str("id", attempt.ID.String()).Msg("Ending release attempt")
	if err := self.releaseAttemptRepository.End(attempt); err != nil {
		return errors.WithMessagef(err, "Could not update release attempt with ID %q", attempt.ID)
	}
	return nil
}
