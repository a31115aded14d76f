// Package gitdriver runs git as a subprocess: plain repository queries,
// isolated work areas for three-way merges, and atomic ref pushes
// (spec.md §6). Git is never linked in-process; every operation shells out,
// matching the subprocess idiom the retrieval pack shows for this exact
// concern (other_examples' gitrepo.go) and spec.md §9's explicit call to
// treat git plumbing as an external dependency.
package gitdriver

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/host"
)

// Context is a bound git repository: a GIT_DIR plus the environment
// overrides ("GIT_AUTHOR_*"/"GIT_COMMITTER_*") needed to stamp commits.
type Context struct {
	GitDir string
	Env    []string
}

// New returns a Context bound to an existing (possibly bare) repository.
func New(gitDir string) *Context {
	return &Context{GitDir: gitDir}
}

// WithEnv returns a copy of c with additional environment variables
// (e.g. "GIT_AUTHOR_DATE=...") applied to every subsequent command.
func (c *Context) WithEnv(env ...string) *Context {
	return &Context{GitDir: c.GitDir, Env: append(append([]string{}, c.Env...), env...)}
}

// Run executes `git <args>` against c's GIT_DIR and returns stdout. Exit
// code 0 is success; any other exit code (except where the caller
// specifically tolerates one, e.g. `config --unset-all`'s exit 5) is an
// error carrying the captured stderr.
func (c *Context) Run(ctx context.Context, args ...string) (string, errors.E) {
	return c.run(ctx, nil, args...)
}

// RunTolerating is like Run but treats any of okExitCodes as success.
func (c *Context) RunTolerating(ctx context.Context, okExitCodes []int, args ...string) (string, errors.E) {
	return c.run(ctx, okExitCodes, args...)
}

func (c *Context) run(ctx context.Context, okExitCodes []int, args ...string) (string, errors.E) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env, "GIT_DIR="+c.GitDir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if ok {
		code := exitErr.ExitCode()
		for _, okCode := range okExitCodes {
			if code == okCode {
				return stdout.String(), nil
			}
		}
	}

	return "", errors.Wrapf(err, "git %s failed: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String()))
}

// WorkArea is an isolated GIT_WORK_TREE/GIT_INDEX_FILE pair rooted at a
// temporary directory, safe to use concurrently with other work areas over
// the same object database (spec.md §5).
type WorkArea struct {
	*Context
	WorkTree  string
	IndexFile string
}

// NewWorkArea creates a work area under dir (which must already exist and
// be exclusive to this work area).
func (c *Context) NewWorkArea(dir string) *WorkArea {
	return &WorkArea{
		Context:   c.WithEnv("GIT_WORK_TREE=" + dir, "GIT_INDEX_FILE="+dir+"/.git-index"),
		WorkTree:  dir,
		IndexFile: dir + "/.git-index",
	}
}

// MergeStatus is the outcome of checking whether two commits can be merged.
type MergeStatus int

const (
	Mergeable MergeStatus = iota
	NoCommonHistory
	AlreadyMerged
)

// Conflict describes a single conflicting path from a failed three-way
// merge.
type Conflict struct {
	Path string
}

// MergeCommand is a ready-to-commit merge: a tree id plus the parents it
// should be committed with.
type MergeCommand struct {
	TreeID  string
	Parents []host.CommitID
}

// RevParse resolves a single rev to a commit id.
func (c *Context) RevParse(ctx context.Context, rev string) (host.CommitID, errors.E) {
	out, err := c.Run(ctx, "rev-parse", rev)
	if err != nil {
		return "", errors.Wrapf(err, "cannot resolve %q", rev)
	}
	return host.CommitID(strings.TrimSpace(out)), nil
}

// MergeBase computes the merge base(s) of two commits.
func (c *Context) MergeBase(ctx context.Context, a, b host.CommitID) ([]host.CommitID, errors.E) {
	out, err := c.RunTolerating(ctx, []int{1}, "merge-base", "--all", string(a), string(b))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot compute merge base of %s and %s", a, b)
	}
	var bases []host.CommitID
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			bases = append(bases, host.CommitID(line))
		}
	}
	return bases, nil
}

// Mergeable determines the relationship between target and commit ahead of
// a three-way merge attempt.
func (c *Context) Mergeable(ctx context.Context, target, commit host.CommitID) (MergeStatus, errors.E) {
	bases, err := c.MergeBase(ctx, target, commit)
	if err != nil {
		return 0, err
	}
	if len(bases) == 0 {
		return NoCommonHistory, nil
	}
	for _, base := range bases {
		if base == commit {
			return AlreadyMerged, nil
		}
	}
	return Mergeable, nil
}

// IsAncestor reports whether ancestor is an ancestor of (or equal to)
// descendant.
func (c *Context) IsAncestor(ctx context.Context, ancestor, descendant host.CommitID) (bool, errors.E) {
	cmd := exec.CommandContext(ctx, "git", "merge-base", "--is-ancestor", string(ancestor), string(descendant))
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env, "GIT_DIR="+c.GitDir)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, errors.Wrap(err, "cannot determine ancestry")
}

// ThreeWayMerge merges commit into target using the first of the given
// merge bases (criss-cross merges needing a synthesized virtual base are
// not supported by this plumbing-level recipe) in an isolated work area,
// returning either a ready MergeCommand or the deduplicated list of
// conflicting paths.
//
// This uses the `read-tree -m` / `ls-files -u` / `write-tree` plumbing
// recipe rather than `merge-tree`'s porcelain output, since the set of
// unmerged index stages it produces is unambiguous to parse.
func (wa *WorkArea) ThreeWayMerge(ctx context.Context, target, commit host.CommitID, bases []host.CommitID) (*MergeCommand, []Conflict, errors.E) {
	if len(bases) == 0 {
		return nil, nil, errors.New("three-way merge requires at least one merge base")
	}
	base := bases[0]

	if _, err := wa.Run(ctx, "read-tree", "-m", string(base), string(target), string(commit)); err != nil {
		return nil, nil, errors.Wrap(err, "read-tree -m failed")
	}

	out, err := wa.Run(ctx, "ls-files", "-u")
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot list unmerged entries")
	}
	if conflicts := parseUnmergedPaths(out); len(conflicts) > 0 {
		return nil, conflicts, nil
	}

	treeID, err := wa.Run(ctx, "write-tree")
	if err != nil {
		return nil, nil, errors.Wrap(err, "write-tree failed")
	}

	return &MergeCommand{
		TreeID:  strings.TrimSpace(treeID),
		Parents: []host.CommitID{target, commit},
	}, nil, nil
}

// parseUnmergedPaths extracts the deduplicated, ordered set of paths from
// `git ls-files -u` output ("<mode> <object> <stage>\t<path>" per line,
// one line per conflicting stage).
func parseUnmergedPaths(lsFilesOutput string) []Conflict {
	var conflicts []Conflict
	seen := map[string]struct{}{}
	for _, line := range strings.Split(strings.TrimRight(lsFilesOutput, "\n"), "\n") {
		if line == "" {
			continue
		}
		tabIdx := strings.IndexByte(line, '\t')
		if tabIdx < 0 {
			continue
		}
		path := line[tabIdx+1:]
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		conflicts = append(conflicts, Conflict{Path: path})
	}
	return conflicts
}

// CommitTree creates a commit object from a tree and parents, stamping the
// author identity via GIT_AUTHOR_NAME/GIT_AUTHOR_EMAIL. It sets no author
// date itself; callers supply one through c.Env (see WithEnv).
func (c *Context) CommitTree(ctx context.Context, treeID string, parents []host.CommitID, message string, author host.Identity) (host.CommitID, errors.E) {
	args := []string{"commit-tree", treeID}
	for _, p := range parents {
		args = append(args, "-p", string(p))
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env, "GIT_DIR="+c.GitDir,
		"GIT_AUTHOR_NAME="+author.Name, "GIT_AUTHOR_EMAIL="+author.Email)
	cmd.Stdin = strings.NewReader(message)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "commit-tree failed: %s", strings.TrimSpace(stderr.String()))
	}
	return host.CommitID(strings.TrimSpace(stdout.String())), nil
}

// UpdateRef sets ref to point at id.
func (c *Context) UpdateRef(ctx context.Context, ref string, id host.CommitID) errors.E {
	_, err := c.Run(ctx, "update-ref", ref, string(id))
	return err
}

// PushAtomic pushes every (localRef, remoteRef) pair to remote in a single
// atomic transaction; either all refs update or none do.
func (c *Context) PushAtomic(ctx context.Context, remote string, refspecs map[string]string) errors.E {
	args := []string{"push", "--atomic", "--porcelain", remote}
	for local, remoteRef := range refspecs {
		args = append(args, local+":"+remoteRef)
	}
	_, err := c.Run(ctx, args...)
	return err
}

// DiffEmpty reports whether a and b have an identical tree, via `git diff
// --quiet`'s exit code (0 = empty, 1 = differs).
func (c *Context) DiffEmpty(ctx context.Context, a, b host.CommitID) (bool, errors.E) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--quiet", string(a), string(b))
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env, "GIT_DIR="+c.GitDir)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, errors.Wrapf(err, "cannot diff %s..%s", a, b)
}

// LogSummary runs `git log --date-order --format="%h %s" --abbrev-commit`
// over the range target..commit, honoring an optional entry limit per
// spec.md §4.1 step 6.
func (c *Context) LogSummary(ctx context.Context, target, commit host.CommitID, limit int) ([]string, errors.E) {
	args := []string{"log", "--date-order", `--format=%h %s`, "--abbrev-commit"}
	if limit > 0 {
		args = append(args, "--max-count", strconv.Itoa(limit+1))
	}
	args = append(args, string(target)+".."+string(commit))
	out, err := c.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil, nil
	}
	lines := strings.Split(out, "\n")
	if limit > 0 && len(lines) > limit {
		lines[limit-1] = "..."
		lines = lines[:limit]
	}
	return lines, nil
}
