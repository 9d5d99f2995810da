package nutcgi

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cirello.io/oversight"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/application/component"
	"github.com/owine/nut-cgi/src/application/component/web"
	"github.com/owine/nut-cgi/src/application/service"
	"github.com/owine/nut-cgi/src/config"
	"github.com/owine/nut-cgi/src/domain"
)

type MonitorCmd struct {
	Url      string        `arg:"--url,env:HEALTHCHECK_URL" default:"http://127.0.0.1:80/cgi-bin/nut/upsstats.cgi"`
	Timeout  time.Duration `arg:"--timeout,env:HEALTHCHECK_TIMEOUT" default:"5s"`
	Markers  string        `arg:"--markers,env:HEALTHCHECK_MARKERS"`
	Interval time.Duration `arg:"--interval" default:"30s" help:"how often the poller re-evaluates"`

	WebListen string `arg:"--web-listen,env:MONITOR_WEB_LISTEN" default:":8080"`

	DbUrl string `arg:"--db-url,env:DATABASE_URL" help:"optional release ledger for /api/release"`
	LogDb bool   `arg:"--log-db"`
}

func (cmd *MonitorCmd) Run(logger *zerolog.Logger) error {
	markers := domain.DefaultMarkers()
	if cmd.Markers != "" {
		loaded, err := domain.MarkersFromFile(cmd.Markers)
		if err != nil {
			return errors.WithMessagef(err, "Could not load markers from %q", cmd.Markers)
		}
		markers = loaded
	}

	prober := service.NewHTTPProber(cmd.Url, logger)
	classifier := domain.NewKeywordClassifier(markers)
	healthService := service.NewHealthService(service.DefaultTiers(prober, classifier, cmd.Timeout), logger)

	var attempts service.ReleaseAttemptService
	if cmd.DbUrl != "" {
		db, err := config.DBConnection(cmd.DbUrl, logger, cmd.LogDb)
		if err != nil {
			return errors.WithMessage(err, "Could not connect to the release ledger")
		}
		attempts = service.NewReleaseAttemptService(db, logger)
	}

	monitoring := config.NewMonitoring()

	monitor := &component.HealthMonitor{
		Logger:        logger.With().Str("component", "HealthMonitor").Logger(),
		HealthService: healthService,
		Monitoring:    monitoring,
		Modes:         []domain.Mode{domain.ModeBasic, domain.ModeStrict},
		Interval:      cmd.Interval,
	}

	webComponent := &web.Web{
		Listen:                cmd.WebListen,
		Logger:                logger.With().Str("component", "Web").Logger(),
		HealthService:         healthService,
		ReleaseAttemptService: attempts,
		Monitoring:            monitoring,
	}

	supervisor := oversight.New(
		oversight.WithLogger(&config.SupervisorLogger{Logger: logger}),
		oversight.WithSpecification(
			10,                    // number of restarts
			1*time.Minute,         // within this time period
			oversight.OneForOne(), // restart every task on its own
		),
	)
	if err := supervisor.Add(monitor.Start); err != nil {
		return err
	}
	if err := supervisor.Add(webComponent.Start); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Start(ctx); err != nil {
		return errors.WithMessage(err, "While starting supervisor")
	}
	return nil
}
