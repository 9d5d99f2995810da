package domain

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type BodyClass uint

const (
	BodyClean BodyClass = iota
	BodyInfraError
	BodyUpstreamDown
)

// BodyClassifier decides what a response body means for the service's
// health. The distinction between a broken CGI (infrastructure error)
// and a CGI that merely cannot reach its UPS (upstream unavailable)
// rests on keyword matching against the rendered page, which is
// inherently fragile. Keeping it behind this interface lets the
// matching rules harden independently of the tier engine.
type BodyClassifier interface {
	Classify(body string) BodyClass
	// HasDomainEvidence reports whether the body shows positive proof
	// of UPS data, as opposed to merely lacking failure markers.
	HasDomainEvidence(body string) bool
}

// Markers are the keyword lists driving the default classifier.
// They are data so that checks are added or tuned by editing
// configuration, not control flow.
type Markers struct {
	// Upstream markers are only penalized in strict mode; infra
	// markers fail the evaluation in both modes, so when both match
	// the body is classified as an infrastructure error.
	Infrastructure []string `yaml:"infrastructure"`
	Upstream       []string `yaml:"upstream"`
	Evidence       []string `yaml:"evidence"`
}

// DefaultMarkers match the pages upsstats.cgi renders when healthy,
// when its templates are broken, and when upsd is unreachable.
func DefaultMarkers() Markers {
	return Markers{
		Infrastructure: []string{
			"Internal Server Error",
			"Error: ",
			"Unable to open template file",
		},
		Upstream: []string{
			"no UPS found",
			"Unable to connect",
			"Data stale",
		},
		Evidence: []string{
			"UPS Status",
			"UPS Model",
			"battery",
		},
	}
}

func MarkersFromFile(path string) (markers Markers, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return
	}
	err = yaml.Unmarshal(content, &markers)
	return
}

type KeywordClassifier struct {
	Markers Markers
}

func NewKeywordClassifier(markers Markers) BodyClassifier {
	return KeywordClassifier{markers}
}

func (self KeywordClassifier) Classify(body string) BodyClass {
	for _, marker := range self.Markers.Infrastructure {
		if strings.Contains(body, marker) {
			return BodyInfraError
		}
	}
	for _, marker := range self.Markers.Upstream {
		if strings.Contains(body, marker) {
			return BodyUpstreamDown
		}
	}
	return BodyClean
}

func (self KeywordClassifier) HasDomainEvidence(body string) bool {
	for _, marker := range self.Markers.Evidence {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
