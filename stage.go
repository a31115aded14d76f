package ghostflow

import (
	"context"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/host"
	"github.com/ghostflow/ghostflow/internal/stage"
)

// StageCmd is the `stage` command group (spec.md §6, §4.2).
type StageCmd struct {
	MR      StageMRCmd      `cmd:"" help:"Stage a merge request's current head."`
	Unstage StageUnstageCmd `cmd:"" help:"Remove a topic from the stage."`
	Tag     StageTagCmd     `cmd:"" help:"Snapshot the stage under refs/stage/<branch>/<reason>."`
}

type stageShared struct {
	Branch string `help:"Stage branch name." required:""`
	Base   string `help:"Base commit the stage is rooted at." required:""`
	Quiet  bool   `help:"Suppress MR comments on unstage/unmerge."`
}

func (s stageShared) buildAction(g *Globals, svc host.Service) *stage.Action {
	stager := stage.New(g.buildGit(), host.CommitID(s.Base))
	return &stage.Action{Stager: stager, Branch: s.Branch, Remote: g.Remote, Service: svc, Quiet: s.Quiet}
}

// StageMRCmd is `stage mr`: stages a merge request's current head as a
// new topic. It has no option to replace an already-staged topic.
type StageMRCmd struct {
	stageShared
	MR int64 `help:"Merge request id, also used as the topic id." required:""`
}

func (c *StageMRCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	mr, errE := svc.MergeRequest(ctx, g.Project, c.MR)
	if errE != nil {
		return errE
	}
	_, errE = c.buildAction(g, svc).StageMergeRequest(ctx, mr, c.MR, nil)
	return errE
}

// StageUnstageCmd is `stage unstage`.
type StageUnstageCmd struct {
	stageShared
	MR int64 `help:"Merge request id (topic id) to remove." required:""`
}

func (c *StageUnstageCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	mr, errE := svc.MergeRequest(ctx, g.Project, c.MR)
	if errE != nil {
		return errE
	}
	_, errE = c.buildAction(g, svc).UnstageMergeRequest(ctx, mr, c.MR)
	return errE
}

// StageTagCmd is `stage tag`.
type StageTagCmd struct {
	stageShared
	Reason     string `help:"Tag reason, used as the ref path component (e.g. \"ci\")." required:""`
	DateFormat string `help:"Go reference-time layout for the dated ref." default:"2006-01-02"`
	Clear      bool   `help:"Clear the stage's topic list after tagging."`
}

func (c *StageTagCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	policy := stage.KeepTopics
	if c.Clear {
		policy = stage.ClearStage
	}
	_, errE = c.buildAction(g, svc).Tag(ctx, c.Reason, c.DateFormat, policy, time.Now(), map[int64]host.MergeRequest{})
	return errE
}
