package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/host"
)

type fakeService struct {
	host.Service
	posted host.PendingCommitStatus
}

func (f *fakeService) PostCommitStatus(ctx context.Context, status host.PendingCommitStatus) errors.E {
	f.posted = status
	return nil
}

func TestPostForCommitExpandsBranchName(t *testing.T) {
	svc := &fakeService{}
	a := New(svc, "dash-{branch_name}", "https://dash.example/{commit}", "status for {branch_name}")

	err := a.PostForCommit(context.Background(), host.Commit{
		ID:      "abc123",
		Refname: "refs/heads/main",
	})
	require.NoError(t, err)
	assert.Equal(t, "dash-main", svc.posted.Name)
	assert.Equal(t, "https://dash.example/abc123", svc.posted.TargetURL)
	assert.Equal(t, host.StatusSuccess, svc.posted.State)
}

func TestPostForMRUsesMRFields(t *testing.T) {
	svc := &fakeService{}
	a := New(svc, "dash", "https://dash.example/{mr_id}", "{source_branch} -> {target_branch}")

	mr := host.MergeRequest{
		ID:           42,
		SourceBranch: "feature",
		TargetBranch: "main",
		Commit:       host.Commit{ID: "deadbeef"},
	}
	err := a.PostForMR(context.Background(), mr)
	require.NoError(t, err)
	assert.Equal(t, "https://dash.example/42", svc.posted.TargetURL)
	assert.Equal(t, "feature -> main", svc.posted.Description)
}
