package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/domain"
)

// Snapshot is what one GET against the CGI endpoint yielded. The
// transport step fills it in; every later step is a predicate over it,
// so a single evaluation probes the service exactly once.
type Snapshot struct {
	Fetched bool
	Status  int
	Body    string
	Header  http.Header
	Err     error
}

// Prober performs the single fetch. Deadlines come in through the
// context; the engine derives them from the step's timeout.
type Prober interface {
	Probe(ctx context.Context) *Snapshot
}

type httpProber struct {
	url    string
	client *retryablehttp.Client
	logger zerolog.Logger
}

func NewHTTPProber(url string, logger *zerolog.Logger) Prober {
	contextualLogger := logger.With().Str("component", "HTTPProber").Logger()

	client := retryablehttp.NewClient()
	// Retry/backoff is the orchestrator's job ("3 consecutive failures
	// before unhealthy" lives in the container runtime, not here).
	client.RetryMax = 0
	client.Logger = &retryableLogger{&contextualLogger}

	return &httpProber{
		url:    url,
		client: client,
		logger: contextualLogger,
	}
}

func (self *httpProber) Probe(ctx context.Context) *Snapshot {
	snapshot := &Snapshot{}

	request, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, self.url, nil)
	if err != nil {
		snapshot.Err = err
		return snapshot
	}

	self.logger.Trace().Str("url", self.url).Msg("Probing")

	response, err := self.client.Do(request)
	if err != nil {
		snapshot.Err = err
		return snapshot
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		snapshot.Err = err
		return snapshot
	}

	snapshot.Fetched = true
	snapshot.Status = response.StatusCode
	snapshot.Body = string(body)
	snapshot.Header = response.Header
	return snapshot
}

// retryableLogger adapts zerolog to retryablehttp's LeveledLogger.
type retryableLogger struct {
	logger *zerolog.Logger
}

func (self *retryableLogger) Error(msg string, keysAndValues ...interface{}) {
	self.logger.Error().Fields(keysAndValues).Msg(msg)
}
func (self *retryableLogger) Info(msg string, keysAndValues ...interface{}) {
	self.logger.Info().Fields(keysAndValues).Msg(msg)
}
func (self *retryableLogger) Debug(msg string, keysAndValues ...interface{}) {
	self.logger.Debug().Fields(keysAndValues).Msg(msg)
}
func (self *retryableLogger) Warn(msg string, keysAndValues ...interface{}) {
	self.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// ProbeStep is a single check. Run must not panic or error past its
// boundary; the engine converts anything else into a failed result.
type ProbeStep struct {
	Name    string
	Timeout time.Duration
	Run     func(context.Context, *Snapshot) domain.ProbeResult
}

// Tier is an ordered group of steps that must all pass together.
// Constructed once at engine configuration time, immutable thereafter.
type Tier struct {
	Name  string
	Modes []domain.Mode
	Steps []ProbeStep
}

func (self Tier) RequiredIn(mode domain.Mode) bool {
	for _, m := range self.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

var allModes = []domain.Mode{domain.ModeBasic, domain.ModeStrict}

// DefaultTiers is the declarative tier list for the upsstats.cgi
// endpoint, ordered by increasing cost and specificity. Earlier shell
// implementations of this check grew tiers by pasting conditionals;
// here a tier is added or removed by editing this slice.
func DefaultTiers(prober Prober, classifier domain.BodyClassifier, stepTimeout time.Duration) []Tier {
	return []Tier{
		{
			Name:  "transport",
			Modes: allModes,
			Steps: []ProbeStep{{
				Name:    "http-get",
				Timeout: stepTimeout,
				Run: func(ctx context.Context, snapshot *Snapshot) domain.ProbeResult {
					*snapshot = *prober.Probe(ctx)
					if snapshot.Err != nil {
						return domain.ProbeResult{
							Kind:   domain.TransportFailure,
							Detail: fmt.Sprintf("target unreachable: %s", snapshot.Err),
						}
					}
					if snapshot.Status < 200 || snapshot.Status > 299 {
						return domain.ProbeResult{
							Kind:   domain.TransportFailure,
							Detail: fmt.Sprintf("unexpected HTTP status %d", snapshot.Status),
						}
					}
					return domain.ProbeResult{Passed: true}
				},
			}},
		},
		{
			Name:  "execution",
			Modes: allModes,
			Steps: []ProbeStep{{
				Name: "body-present",
				Run: func(ctx context.Context, snapshot *Snapshot) domain.ProbeResult {
					if strings.TrimSpace(snapshot.Body) == "" {
						return domain.ProbeResult{
							Kind:   domain.EmptyResponse,
							Detail: "CGI not executing: empty response body",
						}
					}
					return domain.ProbeResult{Passed: true}
				},
			}},
		},
		{
			Name:  "infrastructure-validity",
			Modes: allModes,
			Steps: []ProbeStep{{
				Name: "no-error-markers",
				Run: func(ctx context.Context, snapshot *Snapshot) domain.ProbeResult {
					if classifier.Classify(snapshot.Body) == domain.BodyInfraError {
						return domain.ProbeResult{
							Kind:   domain.InfrastructureError,
							Detail: "response body contains server error markers",
						}
					}
					return domain.ProbeResult{Passed: true}
				},
			}},
		},
		{
			Name:  "headers",
			Modes: allModes,
			Steps: []ProbeStep{{
				Name: "content-type",
				Run: func(ctx context.Context, snapshot *Snapshot) domain.ProbeResult {
					contentType := snapshot.Header.Get("Content-Type")
					if contentType == "" {
						return domain.ProbeResult{
							Kind:   domain.MalformedHeaders,
							Detail: "missing Content-Type header",
						}
					}
					if !strings.HasPrefix(contentType, "text/html") {
						return domain.ProbeResult{
							Kind:   domain.MalformedHeaders,
							Detail: fmt.Sprintf("unexpected Content-Type %q", contentType),
						}
					}
					return domain.ProbeResult{Passed: true}
				},
			}},
		},
		{
			Name:  "domain-liveness",
			Modes: []domain.Mode{domain.ModeStrict},
			Steps: []ProbeStep{
				{
					Name: "upstream-reachable",
					Run: func(ctx context.Context, snapshot *Snapshot) domain.ProbeResult {
						if classifier.Classify(snapshot.Body) == domain.BodyUpstreamDown {
							return domain.ProbeResult{
								Kind:   domain.UpstreamUnavailable,
								Detail: "monitored UPS is unreachable",
							}
						}
						return domain.ProbeResult{Passed: true}
					},
				},
				{
					Name: "domain-evidence",
					Run: func(ctx context.Context, snapshot *Snapshot) domain.ProbeResult {
						if !classifier.HasDomainEvidence(snapshot.Body) {
							return domain.ProbeResult{
								Kind:   domain.UpstreamUnavailable,
								Detail: "no UPS data found in response",
							}
						}
						return domain.ProbeResult{Passed: true}
					},
				},
			},
		},
	}
}
