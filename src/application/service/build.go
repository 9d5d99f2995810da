package service

import (
	"context"
	"encoding/base64"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/adrg/xdg"
	getter "github.com/hashicorp/go-getter/v2"
	"github.com/pborman/ansi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/domain"
)

// BuildService produces a content-addressable artifact from a build
// description. The artifact id is the revision the description names;
// the builder only materializes it as an image tagged with that id.
type BuildService interface {
	Build(context.Context, domain.BuildDescription) (domain.Artifact, string, error)
}

type dockerBuildService struct {
	logger zerolog.Logger
	// image is the repository part of the image reference,
	// e.g. "ghcr.io/owine/nut-cgi".
	image string
}

func NewDockerBuildService(image string, logger *zerolog.Logger) BuildService {
	return &dockerBuildService{
		logger: logger.With().Str("component", "BuildService").Logger(),
		image:  image,
	}
}

func (self dockerBuildService) Build(ctx context.Context, description domain.BuildDescription) (domain.Artifact, string, error) {
	artifact := domain.NewArtifact(description.Revision)

	contextDir, err := self.fetchSource(ctx, description.Source)
	if err != nil {
		return artifact, "", errors.WithMessagef(err, "Could not fetch build context from %q", description.Source)
	}

	reference := self.image + ":" + description.Revision
	self.logger.Info().Str("reference", reference).Str("context", contextDir).Msg("Building image")

	cmd := exec.CommandContext(ctx, "docker", "build", "--tag", reference, contextDir)
	output, err := cmd.CombinedOutput()
	report := stripAnsi(output)
	if err != nil {
		return artifact, report, errors.WithMessagef(err, "Build of %q failed", reference)
	}

	self.logger.Info().Str("reference", reference).Msg("Built image")
	return artifact, report, nil
}

func (self dockerBuildService) fetchSource(ctx context.Context, source string) (string, error) {
	cacheDir := os.Getenv("NUT_CGI_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = xdg.CacheHome + "/nut-cgi-gate"
	}
	cacheDir += "/sources"

	dst, err := filepath.Abs(cacheDir + "/" + base64.RawURLEncoding.EncodeToString([]byte(source)))
	if err != nil {
		return "", err
	}

	result, err := getter.GetAny(ctx, dst, source)
	if err != nil {
		return "", err
	}
	return result.Dst, nil
}

// stripAnsi removes color escapes from captured process output so the
// report stays readable in logs and in the attempt ledger.
func stripAnsi(output []byte) string {
	if stripped, err := ansi.Strip(output); err == nil {
		return string(stripped)
	}
	return string(output)
}
