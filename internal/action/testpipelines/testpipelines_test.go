package testpipelines

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostflow/ghostflow/internal/host"
)

func TestActionStateMatrix(t *testing.T) {
	actions := []Action{StartManual, RestartUnsuccessful, RestartFailed, RestartAll}
	states := []host.PipelineState{
		host.PipelineManual,
		host.PipelineInProgress,
		host.PipelineCanceled,
		host.PipelineFailed,
		host.PipelineSuccess,
	}

	i, tr := jobIgnore, jobTrigger
	expected := [][]jobAction{
		{tr, i, i, i, i},   // StartManual
		{i, i, tr, tr, i},  // RestartUnsuccessful
		{i, i, i, tr, i},   // RestartFailed
		{i, i, tr, tr, tr}, // RestartAll
	}

	for ai, action := range actions {
		for si, state := range states {
			assert.Equal(t, expected[ai][si], action.actionFor(state),
				"unexpected result for action %d on state %d", action, state)
		}
	}
}

func TestShouldActOnFiltersByStageAndName(t *testing.T) {
	opts := Options{Stage: "test"}
	assert.True(t, opts.shouldActOn(host.PipelineJob{Stage: "test", Name: "unit"}))
	assert.False(t, opts.shouldActOn(host.PipelineJob{Stage: "build", Name: "unit"}))

	opts = Options{JobsMatching: []*regexp.Regexp{regexp.MustCompile("^unit")}}
	assert.True(t, opts.shouldActOn(host.PipelineJob{Name: "unit-linux"}))
	assert.False(t, opts.shouldActOn(host.PipelineJob{Name: "lint"}))

	opts = Options{}
	assert.True(t, opts.shouldActOn(host.PipelineJob{Name: "anything"}))
}
