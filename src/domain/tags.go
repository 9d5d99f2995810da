package domain

import (
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type TriggerKind uint

const (
	TriggerBranch TriggerKind = iota
	TriggerTag
)

// Trigger identifies what caused a release attempt: a push to a branch
// or a version tag. The wire form is "branch:NAME" or "tag:VERSION".
type Trigger struct {
	Kind TriggerKind `json:"kind"`
	Ref  string      `json:"ref"`
}

func ParseTrigger(str string) (trigger Trigger, err error) {
	kind, ref, found := strings.Cut(str, ":")
	if !found || ref == "" {
		err = fmt.Errorf("Trigger %q is not of the form branch:NAME or tag:VERSION", str)
		return
	}
	switch kind {
	case "branch":
		trigger.Kind = TriggerBranch
	case "tag":
		trigger.Kind = TriggerTag
	default:
		err = fmt.Errorf("Unknown trigger kind %q", kind)
		return
	}
	trigger.Ref = ref
	return
}

func (self Trigger) String() string {
	switch self.Kind {
	case TriggerBranch:
		return "branch:" + self.Ref
	case TriggerTag:
		return "tag:" + self.Ref
	default:
		return "unknown:" + self.Ref
	}
}

// TagPolicy is the pre-declared mapping from a release trigger to the
// stable tags promotion applies. It is configuration: the core never
// invents tags, it only applies what the policy yields.
type TagPolicy struct {
	// DefaultBranch additionally receives the Latest tag.
	DefaultBranch string `yaml:"default_branch"`
	Latest        string `yaml:"latest"`
	// SemverAliases enables the minor ("X.Y") and major ("X") series
	// aliases for version tags.
	SemverAliases bool `yaml:"semver_aliases"`
}

func DefaultTagPolicy() TagPolicy {
	return TagPolicy{
		DefaultBranch: "main",
		Latest:        "latest",
		SemverAliases: true,
	}
}

func TagPolicyFromFile(path string) (policy TagPolicy, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return
	}
	err = yaml.Unmarshal(content, &policy)
	return
}

// TagsFor yields the deterministic target tag set for a trigger.
// Branch pushes map to the branch alias, plus Latest for the default
// branch. Version tags map to the exact version, its minor and major
// series aliases, and Latest.
func (self TagPolicy) TagsFor(trigger Trigger) ([]string, error) {
	switch trigger.Kind {
	case TriggerBranch:
		tags := []string{trigger.Ref}
		if trigger.Ref == self.DefaultBranch && self.Latest != "" {
			tags = append(tags, self.Latest)
		}
		return tags, nil
	case TriggerTag:
		version, err := semver.NewVersion(trigger.Ref)
		if err != nil {
			return nil, errors.WithMessagef(err, "Could not parse version tag %q", trigger.Ref)
		}
		tags := []string{trigger.Ref}
		if self.SemverAliases {
			tags = append(tags,
				fmt.Sprintf("%d.%d", version.Major(), version.Minor()),
				fmt.Sprintf("%d", version.Major()),
			)
		}
		if self.Latest != "" {
			tags = append(tags, self.Latest)
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("Unknown trigger kind %d", trigger.Kind)
	}
}
