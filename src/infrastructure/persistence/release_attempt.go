package persistence

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/owine/nut-cgi/src/config"
	"github.com/owine/nut-cgi/src/domain"
	"github.com/owine/nut-cgi/src/domain/repository"
)

type releaseAttemptRepository struct {
	DB config.PgxIface
}

func NewReleaseAttemptRepository(db config.PgxIface) repository.ReleaseAttemptRepository {
	return &releaseAttemptRepository{db}
}

func (a releaseAttemptRepository) WithQuerier(querier config.PgxIface) repository.ReleaseAttemptRepository {
	return &releaseAttemptRepository{querier}
}

func (a releaseAttemptRepository) GetById(id uuid.UUID) (attempt domain.ReleaseAttempt, err error) {
	return attempt, pgxscan.Get(
		context.Background(), a.DB, &attempt,
		`SELECT * FROM release_attempt WHERE id = $1`,
		id,
	)
}

func (a releaseAttemptRepository) GetByArtifactId(artifactId string) (attempts []*domain.ReleaseAttempt, err error) {
	return attempts, pgxscan.Select(
		context.Background(), a.DB, &attempts,
		`SELECT * FROM release_attempt WHERE artifact_id = $1 ORDER BY created_at DESC`,
		artifactId,
	)
}

func (a releaseAttemptRepository) GetAll(page *repository.Page) ([]*domain.ReleaseAttempt, error) {
	attempts := make([]*domain.ReleaseAttempt, page.Limit)
	return attempts, fetchPage(
		a.DB, page, &attempts,
		`*`, `release_attempt`, `created_at DESC`,
	)
}

func (a releaseAttemptRepository) Save(attempt *domain.ReleaseAttempt) error {
	return a.DB.QueryRow(
		context.Background(),
		`INSERT INTO release_attempt (artifact_id, trigger, status, outcome) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		attempt.ArtifactID, attempt.Trigger, attempt.Status, attempt.Outcome,
	).Scan(&attempt.ID, &attempt.CreatedAt)
}

func (a releaseAttemptRepository) End(attempt *domain.ReleaseAttempt) (err error) {
	_, err = a.DB.Exec(
		context.Background(),
		`UPDATE release_attempt SET finished_at = $2, status = $3, outcome = $4 WHERE id = $1`,
		attempt.ID, attempt.FinishedAt, attempt.Status, attempt.Outcome,
	)
	return
}
