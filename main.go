package main

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"

	nutcgi "github.com/owine/nut-cgi/src"
	"github.com/owine/nut-cgi/src/config"
)

var buildVersion = "dev"
var buildCommit = "dirty"

func main() {
	args := &CLI{}
	parser, err := parseArgs(args)
	abort(parser, err)

	logger := config.ConfigureLogger(args.Debug)

	abort(parser, Run(parser, args, logger))
}

type CLI struct {
	Debug       bool                   `arg:"--debug" help:"debugging output"`
	Healthcheck *nutcgi.HealthcheckCmd `arg:"subcommand:healthcheck" help:"probe the CGI service and exit 0 iff healthy"`
	Release     *nutcgi.ReleaseCmd     `arg:"subcommand:release" help:"build, verify and promote a candidate image"`
	Monitor     *nutcgi.MonitorCmd     `arg:"subcommand:monitor" help:"periodic evaluation with a status API"`
}

func Version() string {
	return fmt.Sprintf("%s (%s)", buildVersion, buildCommit)
}

func (CLI) Version() string {
	return fmt.Sprintf("nut-cgi-gate %s", Version())
}

func abort(parser *arg.Parser, err error) {
	switch err {
	case nil:
		return
	case arg.ErrHelp:
		parser.WriteHelp(os.Stderr)
		os.Exit(0)
	case arg.ErrVersion:
		fmt.Fprintln(os.Stdout, Version())
		os.Exit(0)
	case nutcgi.ErrUnhealthy:
		// The healthcheck command already printed its diagnostic line.
		os.Exit(1)
	default:
		fmt.Fprint(os.Stderr, err, "\n")
		os.Exit(1)
	}
}

func parseArgs(args *CLI) (parser *arg.Parser, err error) {
	parser, err = arg.NewParser(arg.Config{}, args)
	if err != nil {
		return
	}

	err = parser.Parse(os.Args[1:])
	return
}

func Run(parser *arg.Parser, args *CLI, logger *zerolog.Logger) error {
	switch {
	case args.Healthcheck != nil:
		return args.Healthcheck.Run(logger)
	case args.Release != nil:
		return args.Release.Run(logger)
	case args.Monitor != nil:
		return args.Monitor.Run(logger)
	default:
		parser.WriteHelp(os.Stderr)
	}
	return nil
}
