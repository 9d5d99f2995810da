package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/owine/nut-cgi/src/domain"
)

const manifest = `{"schemaVersion":2,"mediaType":"application/vnd.oci.image.manifest.v1+json"}`

// fakeRegistryServer speaks just enough of the Docker Registry HTTP API
// v2 to serve and accept manifests.
type fakeRegistryServer struct {
	sync.Mutex
	manifests map[string]string
}

func (self *fakeRegistryServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	self.Lock()
	defer self.Unlock()

	parts := strings.Split(req.URL.Path, "/manifests/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	tag := parts[1]

	switch req.Method {
	case http.MethodGet:
		if body, exists := self.manifests[tag]; exists {
			w.Header().Set("Content-Type", "application/vnd.oci.image.manifest.v1+json")
			_, _ = w.Write([]byte(body))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		self.manifests[tag] = string(body)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestApplyTagsCopiesManifest(t *testing.T) {
	t.Parallel()

	// given: a manifest already pushed under its revision tag
	registry := &fakeRegistryServer{manifests: map[string]string{"0a1b2c3d": manifest}}
	server := httptest.NewServer(registry)
	defer server.Close()

	logger := zerolog.New(io.Discard)
	service := NewRegistryService(server.URL, "owine/nut-cgi", &logger)
	artifact := domain.NewArtifact("0a1b2c3d")

	// when
	err := service.ApplyTags(context.Background(), &artifact, []string{"v1.2.3", "1.2", "1", "latest"})

	// then: every stable tag points at the very same manifest
	assert.Nil(t, err)
	assert.True(t, artifact.Promoted())
	for _, tag := range []string{"v1.2.3", "1.2", "1", "latest"} {
		assert.Equal(t, manifest, registry.manifests[tag], tag)
	}
}

func TestApplyTagsIsIdempotent(t *testing.T) {
	t.Parallel()

	// given
	registry := &fakeRegistryServer{manifests: map[string]string{"0a1b2c3d": manifest}}
	server := httptest.NewServer(registry)
	defer server.Close()

	logger := zerolog.New(io.Discard)
	service := NewRegistryService(server.URL, "owine/nut-cgi", &logger)
	artifact := domain.NewArtifact("0a1b2c3d")

	// when
	err1 := service.ApplyTags(context.Background(), &artifact, []string{"latest"})
	err2 := service.ApplyTags(context.Background(), &artifact, []string{"latest"})

	// then
	assert.Nil(t, err1)
	assert.Nil(t, err2)
	assert.Equal(t, manifest, registry.manifests["latest"])
	assert.Len(t, artifact.PromotedTags, 1)
}

func TestApplyTagsUnknownArtifact(t *testing.T) {
	t.Parallel()

	// given: nothing was pushed under the revision tag
	registry := &fakeRegistryServer{manifests: map[string]string{}}
	server := httptest.NewServer(registry)
	defer server.Close()

	logger := zerolog.New(io.Discard)
	service := NewRegistryService(server.URL, "owine/nut-cgi", &logger)
	artifact := domain.NewArtifact("deadbeef")

	// when
	err := service.ApplyTags(context.Background(), &artifact, []string{"latest"})

	// then
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "deadbeef")
	assert.False(t, artifact.Promoted())
	assert.NotContains(t, registry.manifests, "latest")
}
