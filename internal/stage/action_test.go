package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
)

func TestMrUpdateReason(t *testing.T) {
	assert.Equal(t, "staged", mrUpdateReason(IntegrationResult{Staged: true}))

	conflictReason := UnstageConflict
	r := IntegrationResult{UnstageReason: &conflictReason, ConflictPaths: []gitdriver.Conflict{{Path: "a"}, {Path: "b"}}}
	assert.Equal(t, "unstaged: 2 conflicting paths", mrUpdateReason(r))

	status := gitdriver.AlreadyMerged
	assert.Equal(t, "unmerged: already merged", mrUpdateReason(IntegrationResult{Unmerged: &status}))
}

func TestUnstagedStatusMessageListsConflictPaths(t *testing.T) {
	conflictReason := UnstageConflict
	r := IntegrationResult{UnstageReason: &conflictReason, ConflictPaths: []gitdriver.Conflict{{Path: "f.go"}}}
	msg := unstagedStatusMessage(r)
	assert.Contains(t, msg, "`f.go`")
}
