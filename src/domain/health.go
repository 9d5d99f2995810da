package domain

import (
	"encoding/json"
	"fmt"
)

type Mode uint

const (
	ModeBasic Mode = iota
	ModeStrict
)

func (self *Mode) String() (string, error) {
	switch *self {
	case ModeBasic:
		return "basic", nil
	case ModeStrict:
		return "strict", nil
	default:
		return "", fmt.Errorf("Unknown value %d", *self)
	}
}

// ParseMode never fails: anything that is not "strict" is "basic".
// The container orchestrator passes this value through verbatim so a
// typo in its config must not turn into a crashing health check.
func ParseMode(str string) Mode {
	if str == "strict" {
		return ModeStrict
	}
	return ModeBasic
}

func (self *Mode) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*self = ParseMode(str)
	return nil
}

func (self Mode) MarshalJSON() ([]byte, error) {
	if str, err := self.String(); err != nil {
		return nil, err
	} else {
		return json.Marshal(str)
	}
}

type HealthStatus uint

const (
	Unhealthy HealthStatus = iota
	Healthy
)

func (self *HealthStatus) String() (string, error) {
	switch *self {
	case Healthy:
		return "healthy", nil
	case Unhealthy:
		return "unhealthy", nil
	default:
		return "", fmt.Errorf("Unknown value %d", *self)
	}
}

func (self *HealthStatus) FromString(str string) error {
	switch str {
	case "healthy":
		*self = Healthy
	case "unhealthy":
		*self = Unhealthy
	default:
		return fmt.Errorf("Unknown value %q", str)
	}
	return nil
}

func (self *HealthStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	return self.FromString(str)
}

func (self HealthStatus) MarshalJSON() ([]byte, error) {
	if str, err := self.String(); err != nil {
		return nil, err
	} else {
		return json.Marshal(str)
	}
}

// FailureKind classifies why a probe step or release step failed.
type FailureKind string

const (
	TransportFailure    FailureKind = "transport-failure"
	EmptyResponse       FailureKind = "empty-response"
	InfrastructureError FailureKind = "infrastructure-error"
	MalformedHeaders    FailureKind = "malformed-headers"
	UpstreamUnavailable FailureKind = "upstream-unavailable"
	BuildFailed         FailureKind = "build-failed"
	VerificationFailed  FailureKind = "verification-failed"
)

// ProbeResult is the outcome of a single probe step. Steps never return
// errors: every failure mode ends up as Passed=false with Detail set.
type ProbeResult struct {
	Passed bool        `json:"passed"`
	Kind   FailureKind `json:"kind,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

type TierResult struct {
	Tier       string      `json:"tier"`
	Passed     bool        `json:"passed"`
	FailedStep string      `json:"failed_step,omitempty"`
	Kind       FailureKind `json:"kind,omitempty"`
	Detail     string      `json:"detail,omitempty"`
}

// HealthReport is the complete outcome of one tiered evaluation.
// Overall is Healthy iff every tier required in Mode passed; tiers
// after the first failing one are absent from TierResults because they
// were never run.
type HealthReport struct {
	Mode        Mode         `json:"mode"`
	TierResults []TierResult `json:"tier_results"`
	Overall     HealthStatus `json:"overall"`
}

// FirstFailure returns the failing tier result, or nil when healthy.
func (self HealthReport) FirstFailure() *TierResult {
	for i := range self.TierResults {
		if !self.TierResults[i].Passed {
			return &self.TierResults[i]
		}
	}
	return nil
}

// Summary renders the one-line diagnostic required by the process exit
// contract of the healthcheck command.
func (self HealthReport) Summary() string {
	mode, _ := self.Mode.String()
	if failure := self.FirstFailure(); failure != nil {
		return fmt.Sprintf("unhealthy (%s): tier %q step %q: %s", mode, failure.Tier, failure.FailedStep, failure.Detail)
	}
	return fmt.Sprintf("healthy (%s): %d tiers passed", mode, len(self.TierResults))
}
