package check

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/config"
	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

type stubChecker struct{ name string }

func (stubChecker) Run(context.Context, *gitdriver.Context, string, host.CommitID, host.CommitID, host.Identity, config.CheckConfig) (Result, errors.E) {
	return Result{}, nil
}

func TestPostWhenShouldPost(t *testing.T) {
	assert.True(t, Always.shouldPost(host.StatusSuccess))
	assert.True(t, Always.shouldPost(host.StatusFailed))

	assert.False(t, Failure.shouldPost(host.StatusSuccess))
	assert.True(t, Failure.shouldPost(host.StatusFailed))
}

func TestResultMergeAndPass(t *testing.T) {
	var r Result
	r.Merge(Result{Errors: []string{"bad commit message"}})
	r.Merge(Result{Warnings: []string{"line too long"}})
	assert.False(t, r.Pass())
	assert.Equal(t, []string{"bad commit message"}, r.Errors)
	assert.Equal(t, []string{"line too long"}, r.Warnings)

	var clean Result
	assert.True(t, clean.Pass())
}

func TestStatusNameAndDescription(t *testing.T) {
	a := &Action{}
	assert.Equal(t, "ghostflow-check-main", a.StatusName("main"))

	a.BaseName = "acme"
	assert.Equal(t, "acme-check-main", a.StatusName("main"))

	assert.Contains(t, statusDescription("main", "abc123"), "Branch-at: abc123")
}

func TestCheckResultCommentFormatsFragments(t *testing.T) {
	a := &Action{Admins: []string{"alice", "bob"}}
	comment := a.checkResultComment(Result{
		Errors: []string{"missing sign-off"},
		Alerts: []string{"force push detected"},
	}, true)

	assert.Contains(t, comment, "Errors:")
	assert.Contains(t, comment, "- missing sign-off")
	assert.Contains(t, comment, "Alert: @alice @bob.")
}

func TestRegistryFirstWriterWins(t *testing.T) {
	r := NewRegistry()
	r.Register("kind", stubChecker{name: "first"})
	r.Register("kind", stubChecker{name: "second"})
	got, ok := r.get("kind")
	assert.True(t, ok)
	assert.Equal(t, stubChecker{name: "first"}, got)
}
