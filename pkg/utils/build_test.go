package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/mod/semver"
)

func TestVersionIsSemantic(t *testing.T) {
	if Version == "unknown" {
		t.Skip("Version is only set through build flags.")
	}
	assert.Truef(t, semver.IsValid(Version), "Version %s is not a valid semantic version", Version)
}

func TestRaiseInvariantIncrementsCounter(t *testing.T) {
	before := GetMetricValue("utils_test", "raised_on_purpose")
	RaiseInvariant("utils_test", "raised_on_purpose", "Raised by a test.")
	assert.Equal(t, before+1, GetMetricValue("utils_test", "raised_on_purpose"))
}
