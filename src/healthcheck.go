package nutcgi

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/application/service"
	"github.com/owine/nut-cgi/src/domain"
)

// ErrUnhealthy makes the process exit non-zero without printing
// anything beyond the single diagnostic line the exit contract allows.
var ErrUnhealthy = errors.New("unhealthy")

type HealthcheckCmd struct {
	Url     string        `arg:"--url,env:HEALTHCHECK_URL" default:"http://127.0.0.1:80/cgi-bin/nut/upsstats.cgi" help:"CGI endpoint to probe"`
	Mode    string        `arg:"--mode,env:HEALTHCHECK_MODE" default:"basic" help:"basic or strict; anything else means basic"`
	Timeout time.Duration `arg:"--timeout,env:HEALTHCHECK_TIMEOUT" default:"5s" help:"bound for the HTTP probe"`
	Markers string        `arg:"--markers,env:HEALTHCHECK_MARKERS" help:"YAML file overriding the body marker lists"`
}

func (cmd *HealthcheckCmd) Run(logger *zerolog.Logger) error {
	markers := domain.DefaultMarkers()
	if cmd.Markers != "" {
		if loaded, err := domain.MarkersFromFile(cmd.Markers); err != nil {
			return errors.WithMessagef(err, "Could not load markers from %q", cmd.Markers)
		} else {
			markers = loaded
		}
	}

	prober := service.NewHTTPProber(cmd.Url, logger)
	classifier := domain.NewKeywordClassifier(markers)
	engine := service.NewHealthService(service.DefaultTiers(prober, classifier, cmd.Timeout), logger)

	report := engine.Evaluate(context.Background(), domain.ParseMode(cmd.Mode))

	// The one line the orchestrator gets to see.
	fmt.Println(report.Summary())

	if report.Overall != domain.Healthy {
		return ErrUnhealthy
	}
	return nil
}
