// Package follow implements the `follow` action (spec.md §6): it pushes a
// branch into a ref namespace at a coarser interval than every commit, so
// asynchronous external tools can converge on a single stable ref instead
// of racing the branch tip. Grounded on ghostflow/src/actions/follow.rs.
package follow

import (
	"context"

	"github.com/sirupsen/logrus"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
)

// Action force-pushes a branch of a repository into refs/<namespace>/<branch>/<name>.
type Action struct {
	Git          *gitdriver.Context
	Remote       string
	Branch       string
	RefNamespace string // default "follow"
}

// New returns an Action with the default "follow" ref namespace.
func New(git *gitdriver.Context, remote, branch string) *Action {
	return &Action{Git: git, Remote: remote, Branch: branch, RefNamespace: "follow"}
}

func (a *Action) namespace() string {
	if a.RefNamespace == "" {
		return "follow"
	}
	return a.RefNamespace
}

// Update force-pushes refs/heads/<branch> to refs/<namespace>/<branch>/<name>
// on the remote.
func (a *Action) Update(ctx context.Context, name string) errors.E {
	refname := "refs/" + a.namespace() + "/" + a.Branch + "/" + name
	logrus.WithFields(logrus.Fields{"branch": a.Branch, "ref": refname}).Info("following branch")

	refspec := "+refs/heads/" + a.Branch + ":" + refname
	if _, err := a.Git.Run(ctx, "push", "--atomic", "--porcelain", a.Remote, refspec); err != nil {
		return errors.Wrapf(err, "failed to push %s into %s", a.Branch, refname)
	}
	return nil
}
