package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"

	"github.com/owine/nut-cgi/src/domain"
	"github.com/owine/nut-cgi/src/domain/repository"
)

func TestShouldSaveReleaseAttempt(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	id := uuid.New()

	attempt := domain.ReleaseAttempt{
		ArtifactID: "0a1b2c3d",
		Trigger:    "branch:main",
		Status:     domain.ReleaseQuarantined,
	}

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	rows := mock.NewRows([]string{"id", "created_at"}).AddRow(id, now)
	mock.ExpectQuery("INSERT INTO release_attempt").
		WithArgs(attempt.ArtifactID, attempt.Trigger, attempt.Status, attempt.Outcome).
		WillReturnRows(rows)
	repository := NewReleaseAttemptRepository(mock)

	// when
	err = repository.Save(&attempt)

	// then
	assert.Nil(t, err)
	assert.Equal(t, id, attempt.ID)
	assert.Equal(t, now, attempt.CreatedAt)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestShouldEndReleaseAttempt(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	attempt := domain.ReleaseAttempt{
		ID:         uuid.New(),
		ArtifactID: "0a1b2c3d",
		Trigger:    "tag:v1.2.3",
		Status:     domain.ReleasePromoted,
		Outcome: domain.ReleaseOutcome{
			ArtifactID: "0a1b2c3d",
			Status:     domain.ReleasePromoted,
			Promoted:   true,
		},
		FinishedAt: &now,
	}

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	mock.ExpectExec("UPDATE release_attempt").
		WithArgs(attempt.ID, attempt.FinishedAt, attempt.Status, attempt.Outcome).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	repository := NewReleaseAttemptRepository(mock)

	// when
	err = repository.End(&attempt)

	// then
	assert.Nil(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestShouldGetAllReleaseAttempts(t *testing.T) {
	t.Skip("pgxmock does not support SendBatch()", "https://github.com/pashagolub/pgxmock/issues/52")

	t.Parallel()

	page := repository.Page{
		Limit:  1,
		Offset: 0,
	}

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	repository := NewReleaseAttemptRepository(mock)

	// when
	attempts, err := repository.GetAll(&page)

	// then
	assert.Nil(t, err)
	assert.Len(t, attempts, 1)
}
