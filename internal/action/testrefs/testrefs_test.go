package testrefs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

func TestNewDefaultsNamespace(t *testing.T) {
	tr := New(gitdriver.New("/tmp/repo.git"), nil, "origin", "group/project")
	assert.Equal(t, "test-topics", tr.namespace())

	tr.Namespace = "custom"
	assert.Equal(t, "custom", tr.namespace())
}

func TestRefname(t *testing.T) {
	tr := New(gitdriver.New("/tmp/repo.git"), nil, "origin", "group/project")
	assert.Equal(t, "refs/test-topics/42", tr.refname(host.MergeRequest{ID: 42}))
}
