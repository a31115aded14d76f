package ghostflow

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/action/follow"
)

// FollowCmd is the `follow` command (spec.md §6).
type FollowCmd struct {
	Branch    string `help:"Branch being followed." required:""`
	Namespace string `help:"Ref namespace tracking refs are published under." default:"follow"`
	Name      string `help:"Name of the following ref (e.g. the downstream project)." required:""`
}

func (c *FollowCmd) Run(g *Globals) errors.E {
	a := follow.New(g.buildGit(), g.Remote, c.Branch)
	a.RefNamespace = c.Namespace
	return a.Update(context.Background(), c.Name)
}
