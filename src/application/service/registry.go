package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/owine/nut-cgi/src/domain"
)

// RegistryService applies stable tags to an already-pushed artifact.
// Tagging is a manifest copy: the manifest is fetched once under the
// provisional (revision) tag and re-put under every target tag, so
// applying a tag that already points at the manifest is a no-op.
type RegistryService interface {
	ApplyTags(ctx context.Context, artifact *domain.Artifact, tags []string) error
}

const manifestMediaTypes = "application/vnd.docker.distribution.manifest.v2+json, " +
	"application/vnd.oci.image.manifest.v1+json, " +
	"application/vnd.docker.distribution.manifest.list.v2+json, " +
	"application/vnd.oci.image.index.v1+json"

type registryService struct {
	logger zerolog.Logger
	// baseUrl is the registry root, e.g. "https://ghcr.io".
	baseUrl    string
	repository string
	client     *retryablehttp.Client
}

func NewRegistryService(baseUrl, repository string, logger *zerolog.Logger) RegistryService {
	contextualLogger := logger.With().Str("component", "RegistryService").Logger()

	client := retryablehttp.NewClient()
	client.Logger = &retryableLogger{&contextualLogger}

	return &registryService{
		logger:     contextualLogger,
		baseUrl:    baseUrl,
		repository: repository,
		client:     client,
	}
}

func (self registryService) manifestUrl(tag string) string {
	return fmt.Sprintf("%s/v2/%s/manifests/%s", self.baseUrl, self.repository, tag)
}

func (self registryService) ApplyTags(ctx context.Context, artifact *domain.Artifact, tags []string) error {
	manifest, contentType, err := self.fetchManifest(ctx, artifact.ID)
	if err != nil {
		return errors.WithMessagef(err, "Could not fetch manifest for artifact %q", artifact.ID)
	}

	for _, tag := range tags {
		if err := self.putManifest(ctx, tag, manifest, contentType); err != nil {
			return errors.WithMessagef(err, "Could not tag artifact %q as %q", artifact.ID, tag)
		}
		self.logger.Info().Str("artifact", artifact.ID).Str("tag", tag).Msg("Tagged")
	}

	artifact.Promote(tags)
	return nil
}

func (self registryService) fetchManifest(ctx context.Context, tag string) ([]byte, string, error) {
	request, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, self.manifestUrl(tag), nil)
	if err != nil {
		return nil, "", err
	}
	request.Header.Set("Accept", manifestMediaTypes)

	response, err := self.client.Do(request)
	if err != nil {
		return nil, "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("Registry returned status %d for manifest %q", response.StatusCode, tag)
	}

	manifest, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, "", err
	}
	return manifest, response.Header.Get("Content-Type"), nil
}

func (self registryService) putManifest(ctx context.Context, tag string, manifest []byte, contentType string) error {
	request, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, self.manifestUrl(tag), bytes.NewReader(manifest))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", contentType)

	response, err := self.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated && response.StatusCode != http.StatusOK {
		return fmt.Errorf("Registry returned status %d", response.StatusCode)
	}
	return nil
}
