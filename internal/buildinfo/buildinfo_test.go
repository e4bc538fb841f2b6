package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	defer func(v, c, b string) { Version, Commit, BuiltAt = v, c, b }(Version, Commit, BuiltAt)

	Version, Commit, BuiltAt = "1.2.0", "", ""
	assert.Equal(t, "vrpils 1.2.0", String())

	Commit, BuiltAt = "abc123", "2026-01-02"
	assert.Equal(t, "vrpils 1.2.0 (abc123) built 2026-01-02", String())
	assert.Equal(t, "abc123", Info()["commit"])
}
