package ghostflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostflow/ghostflow/internal/action/testpipelines"
)

func TestParseTestPipelinesActionKnownValues(t *testing.T) {
	cases := map[string]testpipelines.Action{
		"start-manual":         testpipelines.StartManual,
		"restart-unsuccessful": testpipelines.RestartUnsuccessful,
		"restart-failed":       testpipelines.RestartFailed,
		"restart-all":          testpipelines.RestartAll,
	}
	for s, want := range cases {
		got, errE := parseTestPipelinesAction(s)
		assert.NoError(t, errE)
		assert.Equal(t, want, got)
	}
}

func TestParseTestPipelinesActionUnknown(t *testing.T) {
	_, errE := parseTestPipelinesAction("restart-everything")
	assert.Error(t, errE)
}
