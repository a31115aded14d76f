package githubhost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostflow/ghostflow/internal/host"
)

func TestSplitProject(t *testing.T) {
	owner, repo, errE := splitProject("ghostflow/ghostflow")
	assert.NoError(t, errE)
	assert.Equal(t, "ghostflow", owner)
	assert.Equal(t, "ghostflow", repo)

	_, _, errE = splitProject("not-a-project")
	assert.Error(t, errE)
}

func TestConvertStateMapsGitHubStatuses(t *testing.T) {
	assert.Equal(t, host.StatusPending, convertState("pending"))
	assert.Equal(t, host.StatusSuccess, convertState("success"))
	assert.Equal(t, host.StatusFailed, convertState("failure"))
	assert.Equal(t, host.StatusFailed, convertState("error"))
	assert.Equal(t, host.StatusRunning, convertState("unknown"))
}

func TestConvertRunStateMapsWorkflowRuns(t *testing.T) {
	assert.Equal(t, host.PipelineManual, convertRunState("queued", ""))
	assert.Equal(t, host.PipelineInProgress, convertRunState("in_progress", ""))
	assert.Equal(t, host.PipelineSuccess, convertRunState("completed", "success"))
	assert.Equal(t, host.PipelineCanceled, convertRunState("completed", "cancelled"))
	assert.Equal(t, host.PipelineFailed, convertRunState("completed", "failure"))
}
