package reformat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostflow/ghostflow/internal/host"
)

func TestFormatFailureMessageListsPaths(t *testing.T) {
	msg := formatFailureMessage(host.CommitID("abc123"), []string{"a.go", "b.go"})
	assert.Contains(t, msg, "abc123")
	assert.Contains(t, msg, "`a.go`")
	assert.Contains(t, msg, "`b.go`")
}

func TestDroppedCommitsMessageListsCommits(t *testing.T) {
	msg := droppedCommitsMessage([]host.CommitID{"deadbeef"})
	assert.Contains(t, msg, "`deadbeef`")
}
