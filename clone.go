package ghostflow

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/action/clone"
)

// CloneCmd is the `clone` command group (spec.md §6): `clone mirror` and
// `clone watched`.
type CloneCmd struct {
	Mirror  CloneMirrorCmd  `cmd:"" help:"Bootstrap a clone that mirrors exactly the given refspecs."`
	Watched CloneWatchedCmd `cmd:"" help:"Bootstrap a clone that watches refs/heads/* with tags disabled."`
}

type cloneShared struct {
	Workdir string `help:"Directory the bare clone's gitdir is created under." required:"" type:"path"`
}

// CloneMirrorCmd is `clone mirror`.
type CloneMirrorCmd struct {
	cloneShared
	Refs []string `help:"Refspecs to mirror exactly (local:remote), repeatable." sep:"," required:""`
}

func (c *CloneMirrorCmd) Run(g *Globals) errors.E {
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	a := clone.New(svc, c.Workdir, g.Project)
	if a.Exists() {
		fmt.Println("clone already bootstrapped")
		return nil
	}
	_, errE = a.CloneMirrorRepo(context.Background(), c.Refs)
	return errE
}

// CloneWatchedCmd is `clone watched`.
type CloneWatchedCmd struct {
	cloneShared
}

func (c *CloneWatchedCmd) Run(g *Globals) errors.E {
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	a := clone.New(svc, c.Workdir, g.Project)
	if a.Exists() {
		fmt.Println("clone already bootstrapped")
		return nil
	}
	_, errE = a.CloneWatchedRepo(context.Background())
	return errE
}
