package repository

import (
	"github.com/google/uuid"

	"github.com/owine/nut-cgi/src/config"
	"github.com/owine/nut-cgi/src/domain"
)

type ReleaseAttemptRepository interface {
	WithQuerier(config.PgxIface) ReleaseAttemptRepository

	GetById(uuid.UUID) (domain.ReleaseAttempt, error)
	GetByArtifactId(string) ([]*domain.ReleaseAttempt, error)
	GetAll(*Page) ([]*domain.ReleaseAttempt, error)
	Save(*domain.ReleaseAttempt) error
	End(*domain.ReleaseAttempt) error
}
