// Package clone implements the `clone` action (spec.md §6): it bootstraps
// a bare, local mirror of a hosted repository, configured the way the rest
// of Ghostflow's actions expect (object database layout, submodule
// symlinks, refspecs). Grounded on ghostflow/src/actions/clone.rs.
package clone

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

// SubmoduleLink names where a submodule gitdir should be found: Internal
// names a sibling clone under the same workdir, External is an absolute
// path elsewhere on disk.
type SubmoduleLink struct {
	Internal string // sibling project name, resolved to "<workdir>/<name>.git"
	External string // absolute path, used as-is
}

func (l SubmoduleLink) path(workdir string) string {
	if l.External != "" {
		return l.External
	}
	return filepath.Join(workdir, l.Internal+".git")
}

// Action bootstraps a bare clone of a hosted project underneath workdir.
type Action struct {
	Service    host.Service
	Workdir    string
	Project    string
	Submodules map[string]SubmoduleLink
}

// New returns an Action that will clone Project into "<workdir>/<project>.git".
func New(service host.Service, workdir, project string) *Action {
	return &Action{Service: service, Workdir: workdir, Project: project, Submodules: map[string]SubmoduleLink{}}
}

// WithSubmodule registers a submodule link to set up after cloning.
func (a *Action) WithSubmodule(name string, link SubmoduleLink) *Action {
	a.Submodules[name] = link
	return a
}

func (a *Action) gitdir() string {
	return filepath.Join(a.Workdir, a.Project+".git")
}

// Exists reports whether the clone has already been bootstrapped.
func (a *Action) Exists() bool {
	_, err := os.Stat(a.gitdir())
	return err == nil
}

// CloneMirrorRepo bootstraps (or reuses) a clone configured to mirror
// exactly the given refspecs from origin, replacing git's default
// "fetch everything under refs/heads" configuration.
func (a *Action) CloneMirrorRepo(ctx context.Context, refs []string) (*gitdriver.Context, errors.E) {
	repo, errE := a.Service.Repo(ctx, a.Project)
	if errE != nil {
		return nil, errE
	}

	git, errE := a.setupCloneFrom(ctx, repo.URL)
	if errE != nil {
		return nil, errE
	}

	if _, err := git.RunTolerating(ctx, []int{5}, "config", "--unset-all", "remote.origin.fetch"); err != nil {
		return nil, errors.Wrap(err, "failed to unset all remote.origin.fetch settings")
	}

	for _, refname := range refs {
		if _, err := git.Run(ctx, "config", "--add", "remote.origin.fetch", "+"+refname+":"+refname); err != nil {
			return nil, errors.Wrapf(err, "failed to add remote.origin.fetch setting for %s", refname)
		}
	}

	if errE := a.setupSubmodules(git); errE != nil {
		return nil, errE
	}
	if errE := a.fetchConfigured(ctx, git); errE != nil {
		return nil, errE
	}

	return git, nil
}

// CloneWatchedRepo bootstraps (or reuses) a clone that is updated manually
// (e.g. by a webhook-triggered fetch) rather than by a fixed refspec list.
func (a *Action) CloneWatchedRepo(ctx context.Context) (*gitdriver.Context, errors.E) {
	repo, errE := a.Service.Repo(ctx, a.Project)
	if errE != nil {
		return nil, errE
	}

	git, errE := a.setupCloneFrom(ctx, repo.URL)
	if errE != nil {
		return nil, errE
	}

	if _, err := git.Run(ctx, "config", "remote.origin.tagopt", "--no-tags"); err != nil {
		return nil, errors.Wrap(err, "failed to set remote.origin.tagopt")
	}

	if errE := a.setupSubmodules(git); errE != nil {
		return nil, errE
	}
	if errE := a.fetchHeads(ctx, git); errE != nil {
		return nil, errE
	}

	return git, nil
}

func (a *Action) setupCloneFrom(ctx context.Context, url string) (*gitdriver.Context, errors.E) {
	gitdir := a.gitdir()
	git := gitdriver.New(gitdir)

	if a.Exists() {
		return git, nil
	}

	if err := os.MkdirAll(gitdir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create the clone working directory %s", gitdir)
	}

	logrus.WithFields(logrus.Fields{"url": url, "gitdir": gitdir, "project": a.Project}).Info("cloning")

	if _, err := git.Run(ctx, "--bare", "init"); err != nil {
		return nil, errors.Wrapf(err, "failed to initialize a bare repository in %s", gitdir)
	}
	if _, err := git.Run(ctx, "config", "remote.origin.url", url); err != nil {
		return nil, errors.Wrapf(err, "failed to set the remote in %s to %s", gitdir, url)
	}
	if _, err := git.Run(ctx, "config", "core.logAllRefUpdates", "true"); err != nil {
		return nil, errors.Wrapf(err, "failed to set core.logAllRefUpdates in %s", gitdir)
	}

	return git, nil
}

func (a *Action) setupSubmodules(git *gitdriver.Context) errors.E {
	moduleDir := filepath.Join(git.GitDir, "modules")

	logrus.WithField("dir", moduleDir).Info("removing modules directory")
	if _, err := os.Stat(moduleDir); err == nil {
		if err := os.RemoveAll(moduleDir); err != nil {
			return errors.Wrapf(err, "failed to remove old submodule directory in %s", moduleDir)
		}
	}

	for name, link := range a.Submodules {
		submoduleLink := filepath.Join(moduleDir, name)
		submoduleDir := filepath.Dir(submoduleLink)
		targetDir := link.path(a.Workdir)

		logrus.WithFields(logrus.Fields{"name": name, "link": submoduleLink, "target": targetDir}).Info("linking submodule")

		if err := os.MkdirAll(submoduleDir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create submodule directory %s", submoduleDir)
		}
		if err := os.Symlink(targetDir, submoduleLink); err != nil && !os.IsExist(err) {
			return errors.Wrapf(err, "failed to symlink submodule directory %s -> %s", submoduleLink, targetDir)
		}
	}

	return nil
}

func (a *Action) fetchConfigured(ctx context.Context, git *gitdriver.Context) errors.E {
	logrus.WithField("gitdir", git.GitDir).Info("fetching initial pre-configured refs")
	if _, err := git.Run(ctx, "fetch", "origin"); err != nil {
		return errors.Wrapf(err, "failed to fetch configured refs in %s", git.GitDir)
	}
	return nil
}

func (a *Action) fetchHeads(ctx context.Context, git *gitdriver.Context) errors.E {
	logrus.WithField("gitdir", git.GitDir).Info("fetching initial branch refs")
	if _, err := git.Run(ctx, "fetch", "origin", "--prune", "+refs/heads/*:refs/heads/*"); err != nil {
		return errors.Wrapf(err, "failed to fetch heads in %s", git.GitDir)
	}
	return nil
}
