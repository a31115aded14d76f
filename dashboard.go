package ghostflow

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/action/dashboard"
	"github.com/ghostflow/ghostflow/internal/host"
)

// DashboardCmd is the `dashboard` command (spec.md §6).
type DashboardCmd struct {
	StatusName  string `help:"Status-name template." required:""`
	URL         string `help:"URL template." required:""`
	Description string `help:"Description template." required:""`

	MR     int64  `help:"Merge request id. Mutually exclusive with --commit."`
	Commit string `help:"Commit id to post a status for. Mutually exclusive with --mr."`
	Refname string `help:"Refname the commit was fetched through, for branch_name/tag_name template fields."`
}

func (c *DashboardCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	a := dashboard.New(svc, c.StatusName, c.URL, c.Description)

	if c.MR != 0 {
		mr, errE := svc.MergeRequest(ctx, g.Project, c.MR)
		if errE != nil {
			return errE
		}
		return a.PostForMR(ctx, mr)
	}

	repo, errE := svc.Repo(ctx, g.Project)
	if errE != nil {
		return errE
	}
	commit := host.Commit{Repo: &repo, Refname: c.Refname, ID: host.CommitID(c.Commit)}
	return a.PostForCommit(ctx, commit)
}
