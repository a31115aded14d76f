package ghostflow

import (
	"context"
	"fmt"
	"os"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/action/check"
	ghostflowconfig "github.com/ghostflow/ghostflow/internal/config"
	"github.com/ghostflow/ghostflow/internal/host"
)

// CheckCmd is the `check` command group (spec.md §6): `check list` and
// `check run {commits|topic}`.
type CheckCmd struct {
	List CheckListCmd `cmd:"" help:"List the check kinds configured for this project."`
	Run  CheckRunCmd  `cmd:"" help:"Run configured checks."`
}

// CheckListCmd prints the configured check kinds, one per line.
type CheckListCmd struct{}

func (c *CheckListCmd) Run(g *Globals) errors.E {
	cfg, errE := loadConfig(g)
	if errE != nil {
		return errE
	}
	for _, chk := range cfg.Checks {
		fmt.Fprintln(os.Stdout, chk.Kind)
	}
	return nil
}

// CheckRunCmd runs checks against either a single merge request (`topic`)
// or a commit range (`commits`).
type CheckRunCmd struct {
	Topic   *CheckRunTopicCmd   `cmd:"" help:"Check one merge request's head commit against its target branch."`
	Commits *CheckRunCommitsCmd `cmd:"" help:"Check every commit in a range in parallel."`
}

type checkRunShared struct {
	Admins []string `help:"Hosting-service handles alerted on an Alert-level finding." sep:","`
}

func (s checkRunShared) buildAction(g *Globals, svc host.Service, cfg *ghostflowconfig.Configuration) *check.Action {
	return check.New(g.buildGit(), svc, check.NewRegistry(), cfg.Checks, s.Admins)
}

// CheckRunTopicCmd is `check run topic`.
type CheckRunTopicCmd struct {
	checkRunShared
	Base string `help:"Target branch name or commit id." required:""`
	MR   int64  `help:"Merge request id." required:""`
}

func (c *CheckRunTopicCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	cfg, errE := loadConfig(g)
	if errE != nil {
		return errE
	}
	mr, errE := svc.MergeRequest(ctx, g.Project, c.MR)
	if errE != nil {
		return errE
	}
	status, errE := c.buildAction(g, svc, cfg).CheckMR(ctx, "check run topic", host.CommitID(c.Base), mr)
	if errE != nil {
		return errE
	}
	if status != check.Pass {
		return errors.New("one or more checks failed")
	}
	return nil
}

// CheckRunCommitsCmd is `check run commits`.
type CheckRunCommitsCmd struct {
	checkRunShared
	Base         string `help:"Range start (exclusive)." required:""`
	Head         string `help:"Range end (inclusive)." required:""`
	AuthorName   string `help:"Author name attributed to the run." default:"ghostflow"`
	AuthorEmail  string `help:"Author email attributed to the run."`
}

func (c *CheckRunCommitsCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	cfg, errE := loadConfig(g)
	if errE != nil {
		return errE
	}
	author := host.Identity{Name: c.AuthorName, Email: c.AuthorEmail}
	results, errE := c.buildAction(g, svc, cfg).CheckCommits(ctx, "check run commits", host.CommitID(c.Base), host.CommitID(c.Head), author)
	if errE != nil {
		return errE
	}
	failed := false
	for _, r := range results {
		if !r.Pass() {
			failed = true
		}
	}
	if failed {
		return errors.New("one or more commits failed checks")
	}
	return nil
}
