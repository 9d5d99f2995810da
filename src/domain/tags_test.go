package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTrigger(t *testing.T) {
	t.Parallel()

	tries := map[string]struct {
		input    string
		expected Trigger
		ok       bool
	}{
		"branch":       {"branch:main", Trigger{TriggerBranch, "main"}, true},
		"tag":          {"tag:v1.2.3", Trigger{TriggerTag, "v1.2.3"}, true},
		"missing ref":  {"branch:", Trigger{}, false},
		"missing kind": {"main", Trigger{}, false},
		"unknown kind": {"commit:abc", Trigger{}, false},
	}

	for name, try := range tries {
		try := try
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			trigger, err := ParseTrigger(try.input)
			if try.ok {
				assert.Nil(t, err)
				assert.Equal(t, try.expected, trigger)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTagPolicyTagsFor(t *testing.T) {
	t.Parallel()

	policy := DefaultTagPolicy()

	tries := map[string]struct {
		trigger  Trigger
		expected []string
		ok       bool
	}{
		"default branch": {
			Trigger{TriggerBranch, "main"},
			[]string{"main", "latest"},
			true,
		},
		"feature branch": {
			Trigger{TriggerBranch, "renovate/alpine"},
			[]string{"renovate/alpine"},
			true,
		},
		"version tag": {
			Trigger{TriggerTag, "v2.3.4"},
			[]string{"v2.3.4", "2.3", "2", "latest"},
			true,
		},
		"unparseable version": {
			Trigger{TriggerTag, "nightly"},
			nil,
			false,
		},
	}

	for name, try := range tries {
		try := try
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tags, err := policy.TagsFor(try.trigger)
			if try.ok {
				assert.Nil(t, err)
				assert.Equal(t, try.expected, tags)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTagPolicyWithoutAliases(t *testing.T) {
	t.Parallel()

	policy := TagPolicy{DefaultBranch: "master", Latest: "", SemverAliases: false}

	tags, err := policy.TagsFor(Trigger{TriggerTag, "v1.0.0"})
	assert.Nil(t, err)
	assert.Equal(t, []string{"v1.0.0"}, tags)

	tags, err = policy.TagsFor(Trigger{TriggerBranch, "master"})
	assert.Nil(t, err)
	assert.Equal(t, []string{"master"}, tags)
}

func TestArtifactPromotion(t *testing.T) {
	t.Parallel()

	// given
	artifact := NewArtifact("0a1b2c3d")
	assert.False(t, artifact.Promoted())
	assert.Contains(t, artifact.ProvisionalTags, "0a1b2c3d")

	// when
	artifact.Promote([]string{"v1.0.0", "latest"})
	artifact.Promote([]string{"latest"}) // tags are a set, re-adding is a no-op

	// then
	assert.True(t, artifact.Promoted())
	assert.Len(t, artifact.PromotedTags, 2)
}
