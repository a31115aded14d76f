package clone

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubmoduleLinkPath(t *testing.T) {
	internal := SubmoduleLink{Internal: "vendor/lib"}
	assert.Equal(t, filepath.Join("/work", "vendor/lib.git"), internal.path("/work"))

	external := SubmoduleLink{External: "/opt/lib.git"}
	assert.Equal(t, "/opt/lib.git", external.path("/work"))
}

func TestExistsFalseForFreshWorkdir(t *testing.T) {
	a := New(nil, t.TempDir(), "group/project")
	assert.False(t, a.Exists())
}

func TestWithSubmoduleRegisters(t *testing.T) {
	a := New(nil, t.TempDir(), "group/project")
	a.WithSubmodule("lib", SubmoduleLink{Internal: "lib"})
	assert.Contains(t, a.Submodules, "lib")
}
