package ghostflow

import (
	"context"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/config"
	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
	"github.com/ghostflow/ghostflow/internal/reformat"
)

// ReformatCmd is the `reformat` command group (spec.md §6): `reformat
// commits` and `reformat repo`.
type ReformatCmd struct {
	Commits ReformatCommitsCmd `cmd:"" help:"Rewrite a merge request's history through the configured formatters."`
	Repo    ReformatRepoCmd    `cmd:"" help:"Replace a merge request's head with a single whole-tree reformat commit."`
}

// buildRegistry builds a reformat.Registry from the project's configured
// formatters.
func buildRegistry(cfg *config.Configuration) *reformat.Registry {
	registry := reformat.NewRegistry()
	for kind, f := range cfg.Formatters {
		registry.Register(reformat.Formatter{
			Kind:           kind,
			ExecutablePath: f.Formatter,
			ConfigFiles:    f.ConfigFiles,
			Timeout:        f.TimeoutDuration(),
		})
	}
	return registry
}

// attributeLookup resolves the `format.<kind>` attribute for path via
// `git check-attr`, parsing its standard "<path>: <attr>: <value>" line.
func attributeLookup(git *gitdriver.Context) reformat.AttributeLookup {
	return func(ctx context.Context, path, kind string) (reformat.AttrValue, errors.E) {
		out, errE := git.Run(ctx, "check-attr", "format."+kind, "--", path)
		if errE != nil {
			return reformat.AttrValue{}, errE
		}
		parts := strings.SplitN(strings.TrimRight(out, "\n"), ": ", 3) //nolint:gomnd
		if len(parts) != 3 { //nolint:gomnd
			return reformat.AttrValue{}, nil
		}
		switch parts[2] {
		case "unspecified", "unset":
			return reformat.AttrValue{}, nil
		case "set":
			return reformat.AttrValue{Set: true}, nil
		default:
			return reformat.AttrValue{Set: true, Value: parts[2]}, nil
		}
	}
}

// ReformatCommitsCmd is `reformat commits`.
type ReformatCommitsCmd struct {
	Base string `help:"Target branch name or commit id." required:""`
	MR   int64  `help:"Merge request id." required:""`
}

func (c *ReformatCommitsCmd) Run(g *Globals) errors.E {
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
	git := g.buildGit()
	rf := &reformat.Reformatter{Git: git, Registry: buildRegistry(cfg), Service: svc, Remote: g.Remote}
	_, _, errE = rf.ReformatMR(ctx, host.CommitID(c.Base), mr, attributeLookup(git))
	return errE
}

// ReformatRepoCmd is `reformat repo`.
type ReformatRepoCmd struct {
	MR int64 `help:"Merge request id." required:""`
}

func (c *ReformatRepoCmd) Run(g *Globals) errors.E {
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
	git := g.buildGit()
	rf := &reformat.Reformatter{Git: git, Registry: buildRegistry(cfg), Service: svc, Remote: g.Remote}
	_, errE = rf.ReformatRepo(ctx, mr, attributeLookup(git))
	return errE
}
