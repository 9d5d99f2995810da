package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Artifact is a built, addressable image. Its id is externally derived
// from the build input (the commit SHA of the trigger), never computed
// here. Tags are sets: re-adding an already-present tag is a no-op,
// which makes re-promotion of an identical attempt idempotent.
type Artifact struct {
	ID              string              `json:"id"`
	ProvisionalTags map[string]struct{} `json:"provisional_tags"`
	PromotedTags    map[string]struct{} `json:"promoted_tags"`
}

func NewArtifact(id string) Artifact {
	return Artifact{
		ID:              id,
		ProvisionalTags: map[string]struct{}{id: {}},
		PromotedTags:    map[string]struct{}{},
	}
}

func (self *Artifact) Promote(tags []string) {
	for _, tag := range tags {
		self.PromotedTags[tag] = struct{}{}
	}
}

func (self Artifact) Promoted() bool {
	return len(self.PromotedTags) > 0
}

type BuildDescription struct {
	// Source is a go-getter URL for the build context.
	Source   string  `json:"source"`
	Revision string  `json:"revision"`
	Trigger  Trigger `json:"trigger"`
}

type VerificationResult struct {
	Job    string `json:"job"`
	Passed bool   `json:"passed"`
	Report string `json:"report,omitempty"`
}

type ReleaseStatus uint

const (
	ReleaseBuildFailed ReleaseStatus = iota
	ReleaseQuarantined
	ReleasePromoted
)

func (self *ReleaseStatus) String() (string, error) {
	switch *self {
	case ReleaseBuildFailed:
		return "build-failed", nil
	case ReleaseQuarantined:
		return "quarantined", nil
	case ReleasePromoted:
		return "promoted", nil
	default:
		return "", fmt.Errorf("Unknown value %d", *self)
	}
}

func (self *ReleaseStatus) FromString(str string) error {
	switch str {
	case "build-failed":
		*self = ReleaseBuildFailed
	case "quarantined":
		*self = ReleaseQuarantined
	case "promoted":
		*self = ReleasePromoted
	default:
		return fmt.Errorf("Unknown value %q", str)
	}
	return nil
}

func (self *ReleaseStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	return self.FromString(str)
}

func (self *ReleaseStatus) Scan(value any) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("Cannot scan %T into ReleaseStatus", value)
	}
	return self.FromString(str)
}

func (self ReleaseStatus) Value() (driver.Value, error) {
	str, err := self.String()
	return str, err
}

func (self ReleaseStatus) MarshalJSON() ([]byte, error) {
	if str, err := self.String(); err != nil {
		return nil, err
	} else {
		return json.Marshal(str)
	}
}

// ReleaseOutcome aggregates one release attempt. JobResults always
// contains one entry per configured job, pass or fail, so a caller can
// diagnose every failure at once instead of only the first.
type ReleaseOutcome struct {
	ArtifactID  string               `json:"artifact_id"`
	Status      ReleaseStatus        `json:"status"`
	Promoted    bool                 `json:"promoted"`
	JobResults  []VerificationResult `json:"job_results"`
	AppliedTags []string             `json:"applied_tags,omitempty"`
	BuildReport string               `json:"build_report,omitempty"`
	// PromotionError is set when every job passed but applying the
	// stable tags failed; the artifact then stays quarantined.
	PromotionError string `json:"promotion_error,omitempty"`
}

// FailedJobs lists the names of every job that did not pass.
func (self ReleaseOutcome) FailedJobs() []string {
	var failed []string
	for _, result := range self.JobResults {
		if !result.Passed {
			failed = append(failed, result.Job)
		}
	}
	return failed
}

// ReleaseAttempt is the persisted record of one release invocation.
type ReleaseAttempt struct {
	ID         uuid.UUID      `json:"id"`
	ArtifactID string         `json:"artifact_id"`
	Trigger    string         `json:"trigger"`
	Status     ReleaseStatus  `json:"status"`
	Outcome    ReleaseOutcome `json:"outcome"`
	CreatedAt  time.Time      `json:"created_at"`
	FinishedAt *time.Time     `json:"finished_at"`
}
