package ghostflow

import (
	"context"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/merge"
)

// MergeCmd is the `merge` command (spec.md §6, §4.1): merge_mr against a
// single target branch, using AllowAllPolicy as the trailer filter (a
// site wanting RejectTokenPolicy or another MergePolicy links its own
// binary against internal/merge directly).
type MergeCmd struct {
	Branch string `help:"Target branch." required:""`
	MR     int64  `help:"Merge request id." required:""`
	Quiet  bool   `help:"Suppress MR comments on merge failures."`
}

func (c *MergeCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	mr, errE := svc.MergeRequest(ctx, g.Project, c.MR)
	if errE != nil {
		return errE
	}
	identity := mr.Author.Identity()

	settings := merge.NewMergeSettings(c.Branch, merge.AllowAllPolicy{})
	settings.Quiet = c.Quiet

	m := merge.New(g.buildGit(), svc, g.Remote, g.Project)
	_, errE = m.MergeMR(ctx, mr, identity, time.Now(), settings)
	return errE
}
