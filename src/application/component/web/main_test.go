package web

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"

	"github.com/owine/nut-cgi/src/application/service"
	"github.com/owine/nut-cgi/src/config"
	"github.com/owine/nut-cgi/src/domain"
	"github.com/owine/nut-cgi/src/domain/repository"
)

type stubHealthService struct {
	report domain.HealthReport
}

func (self stubHealthService) Evaluate(ctx context.Context, mode domain.Mode) domain.HealthReport {
	report := self.report
	report.Mode = mode
	return report
}

type stubReleaseAttemptService struct {
	attempt domain.ReleaseAttempt
	err     error
}

func (self stubReleaseAttemptService) WithQuerier(config.PgxIface) service.ReleaseAttemptService {
	return self
}

func (self stubReleaseAttemptService) GetById(uuid.UUID) (domain.ReleaseAttempt, error) {
	return self.attempt, self.err
}

func (self stubReleaseAttemptService) GetByArtifactId(string) ([]*domain.ReleaseAttempt, error) {
	return []*domain.ReleaseAttempt{&self.attempt}, self.err
}

func (self stubReleaseAttemptService) GetAll(page *repository.Page) ([]*domain.ReleaseAttempt, error) {
	page.Total = 1
	return []*domain.ReleaseAttempt{&self.attempt}, self.err
}

func (self stubReleaseAttemptService) Save(*domain.ReleaseAttempt) error { return self.err }
func (self stubReleaseAttemptService) End(*domain.ReleaseAttempt) error  { return self.err }

func buildWeb(health service.HealthService, attempts service.ReleaseAttemptService) *Web {
	return &Web{
		Logger:                zerolog.Nop(),
		HealthService:         health,
		ReleaseAttemptService: attempts,
	}
}

func healthyReport() domain.HealthReport {
	return domain.HealthReport{
		TierResults: []domain.TierResult{{Tier: "transport", Passed: true}},
		Overall:     domain.Healthy,
	}
}

func unhealthyReport() domain.HealthReport {
	return domain.HealthReport{
		TierResults: []domain.TierResult{
			{Tier: "execution", FailedStep: "body-present", Kind: domain.EmptyResponse, Detail: "empty response body"},
		},
		Overall: domain.Unhealthy,
	}
}

func TestApiHealthGetHealthy(t *testing.T) {
	t.Parallel()

	web := buildWeb(stubHealthService{healthyReport()}, nil)

	apitest.New().
		Handler(web.Router()).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.overall", "healthy")).
		End()
}

func TestApiHealthGetUnhealthy(t *testing.T) {
	t.Parallel()

	web := buildWeb(stubHealthService{unhealthyReport()}, nil)

	apitest.New().
		Handler(web.Router()).
		Get("/api/health").
		Query("mode", "strict").
		Expect(t).
		Status(http.StatusServiceUnavailable).
		Assert(jsonpath.Equal("$.mode", "strict")).
		Assert(jsonpath.Equal("$.tier_results[0].failed_step", "body-present")).
		End()
}

func TestApiReleaseGetWithoutLedger(t *testing.T) {
	t.Parallel()

	web := buildWeb(stubHealthService{healthyReport()}, nil)

	apitest.New().
		Handler(web.Router()).
		Get("/api/release").
		Expect(t).
		Status(http.StatusServiceUnavailable).
		End()
}

func TestApiReleaseGet(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	attempts := stubReleaseAttemptService{attempt: domain.ReleaseAttempt{
		ID:         uuid.New(),
		ArtifactID: "0a1b2c3d",
		Trigger:    "branch:main",
		Status:     domain.ReleasePromoted,
		CreatedAt:  now,
	}}
	web := buildWeb(stubHealthService{healthyReport()}, attempts)

	apitest.New().
		Handler(web.Router()).
		Get("/api/release").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.attempts[0].artifact_id", "0a1b2c3d")).
		Assert(jsonpath.Equal("$.attempts[0].status", "promoted")).
		Assert(jsonpath.Equal("$.page.total", float64(1))).
		Assert(jsonpath.Equal("$.page.number", float64(1))).
		Assert(jsonpath.Equal("$.page.pages", float64(1))).
		End()
}

func TestApiReleaseGetBadPaging(t *testing.T) {
	t.Parallel()

	web := buildWeb(stubHealthService{healthyReport()}, stubReleaseAttemptService{})

	tries := map[string]struct {
		key   string
		value string
	}{
		"unparseable limit": {"limit", "many"},
		"zero limit":        {"limit", "0"},
		"negative offset":   {"offset", "-5"},
	}

	for name, try := range tries {
		try := try
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			apitest.New().
				Handler(web.Router()).
				Get("/api/release").
				Query(try.key, try.value).
				Expect(t).
				Status(http.StatusBadRequest).
				End()
		})
	}
}

func TestStartStopsCleanly(t *testing.T) {
	t.Parallel()

	// given
	var buffer bytes.Buffer
	web := &Web{
		Listen:        "127.0.0.1:0",
		Logger:        zerolog.New(zerolog.SyncWriter(&buffer)),
		HealthService: stubHealthService{healthyReport()},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- web.Start(ctx) }()

	// when: an orderly shutdown
	time.Sleep(50 * time.Millisecond)
	cancel()

	// then: no startup failure is reported for the closed listener
	assert.Nil(t, <-done)
	assert.NotContains(t, buffer.String(), "Failed to start web server")
}

func TestApiReleaseIdGet(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	attempts := stubReleaseAttemptService{attempt: domain.ReleaseAttempt{
		ID:         id,
		ArtifactID: "0a1b2c3d",
		Trigger:    "tag:v1.2.3",
		Status:     domain.ReleaseQuarantined,
	}}
	web := buildWeb(stubHealthService{healthyReport()}, attempts)

	apitest.New().
		Handler(web.Router()).
		Get("/api/release/"+id.String()).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.id", id.String())).
		Assert(jsonpath.Equal("$.status", "quarantined")).
		End()
}

func TestApiReleaseIdGetMalformedId(t *testing.T) {
	t.Parallel()

	web := buildWeb(stubHealthService{healthyReport()}, stubReleaseAttemptService{})

	apitest.New().
		Handler(web.Router()).
		Get("/api/release/not-a-uuid").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestApiReleaseIdGetUnknown(t *testing.T) {
	t.Parallel()

	web := buildWeb(
		stubHealthService{healthyReport()},
		stubReleaseAttemptService{err: errors.New("no rows in result set")},
	)

	apitest.New().
		Handler(web.Router()).
		Get("/api/release/"+uuid.NewString()).
		Expect(t).
		Status(http.StatusNotFound).
		End()
}
