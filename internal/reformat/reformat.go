package reformat

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

// Error kinds (spec.md §7).
const (
	ErrMergeCommit     = "reformat_repo was given a merge commit"
	ErrReformatFailed  = "formatter exited non-zero or timed out"
	ErrDisallowedFiles = "post-format tree invariant violated"
)

// Reformatter rewrites topic branches and whole trees through a formatter
// Registry (spec.md §4.3).
type Reformatter struct {
	Git      *gitdriver.Context
	Registry *Registry
	Service  host.Service
	Remote   string
}

// listTreePaths parses `ls-tree -r` output, excluding submodules (mode
// 160000) and symlinks (mode 120000).
func (rf *Reformatter) listTreePaths(ctx context.Context, treeish string) ([]string, errors.E) {
	out, err := rf.Git.Run(ctx, "ls-tree", "-r", treeish)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		mode := strings.Fields(fields[0])[0]
		if mode == "160000" || mode == "120000" {
			continue
		}
		paths = append(paths, fields[1])
	}
	return paths, nil
}

// ReformatRepo rewrites exactly one commit that replaces the entire tree
// of mr's head (spec.md §4.3 "Reformat modes" - reformat_repo).
func (rf *Reformatter) ReformatRepo(ctx context.Context, mr host.MergeRequest, lookup AttributeLookup) (host.CommitID, errors.E) {
	isMerge, err := rf.isMergeCommit(ctx, mr.Commit.ID)
	if err != nil {
		return "", err
	}
	if isMerge {
		_ = rf.postComment(ctx, mr, "This commit is a merge commit and cannot be reformatted as a whole tree.")
		return "", errors.New(ErrMergeCommit)
	}

	paths, err := rf.listTreePaths(ctx, string(mr.Commit.ID))
	if err != nil {
		return "", err
	}

	workDir, err := newTempWorkDir()
	if err != nil {
		return "", err
	}
	defer cleanupWorkDir(workDir)
	wa := rf.Git.NewWorkArea(workDir)

	if _, err := wa.Run(ctx, "read-tree", string(mr.Commit.ID)); err != nil {
		return "", err
	}
	if _, err := wa.Run(ctx, "checkout-index", "-a"); err != nil {
		return "", err
	}

	failed, errE := rf.Registry.RunFanOut(ctx, workDir, paths, lookup)
	if errE != nil {
		return "", errE
	}
	if len(failed) > 0 {
		_ = rf.postComment(ctx, mr, formatFailureMessage(mr.Commit.ID, failed))
		return "", detailPaths(errors.New(ErrReformatFailed), failed)
	}

	if err := checkTreeSanity(ctx, wa, paths); err != nil {
		_ = rf.postComment(ctx, mr, err.Error())
		return "", errors.New(ErrDisallowedFiles)
	}

	if _, err := wa.Run(ctx, "add", "-A"); err != nil {
		return "", err
	}
	treeID, err := wa.Run(ctx, "write-tree")
	if err != nil {
		return "", err
	}

	author, dateEnv, errE := rf.authorship(ctx, mr.Commit.ID)
	if errE != nil {
		return "", errE
	}
	committed := rf.Git.WithEnv(dateEnv...)
	newCommit, err := committed.CommitTree(ctx, strings.TrimSpace(treeID), []host.CommitID{mr.Commit.ID}, rf.originalMessage(ctx, mr.Commit.ID), author)
	if err != nil {
		return "", err
	}

	if err := rf.forcePush(ctx, mr, newCommit); err != nil {
		return "", err
	}
	return newCommit, nil
}

// ReformatMR rewrites each commit on the MR range base..mr.Commit.ID,
// eliding commits whose formatted diff becomes empty (spec.md §4.3
// "Reformat modes" - reformat_mr).
func (rf *Reformatter) ReformatMR(ctx context.Context, base host.CommitID, mr host.MergeRequest, lookup AttributeLookup) (host.CommitID, []host.CommitID, errors.E) {
	out, err := rf.Git.Run(ctx, "rev-list", "--reverse", "--topo-order", "^"+string(base), string(mr.Commit.ID))
	if err != nil {
		return "", nil, err
	}

	var commits []host.CommitID
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line != "" {
			commits = append(commits, host.CommitID(line))
		}
	}

	mapped := map[host.CommitID]host.CommitID{base: base}
	var dropped []host.CommitID
	var head host.CommitID = base

	for _, orig := range commits {
		parents, err := rf.parentsOf(ctx, orig)
		if err != nil {
			return "", dropped, err
		}
		rewrittenParents := make([]host.CommitID, len(parents))
		for i, p := range parents {
			if rp, ok := mapped[p]; ok {
				rewrittenParents[i] = rp
			} else {
				rewrittenParents[i] = p
			}
		}

		changedPaths, err := rf.changedPaths(ctx, orig)
		if err != nil {
			return "", dropped, err
		}
		checkoutPaths := unionPaths(changedPaths, rf.Registry.ConfigFiles())

		workDir, err := newTempWorkDir()
		if err != nil {
			return "", dropped, err
		}
		wa := rf.Git.NewWorkArea(workDir)
		if _, err := wa.Run(ctx, "read-tree", string(orig)); err != nil {
			cleanupWorkDir(workDir)
			return "", dropped, err
		}
		if _, err := wa.Run(ctx, append([]string{"checkout-index", "--ignore-missing", "--"}, checkoutPaths...)...); err != nil {
			cleanupWorkDir(workDir)
			return "", dropped, err
		}

		failed, errE := rf.Registry.RunFanOut(ctx, workDir, checkoutPaths, lookup)
		if errE != nil {
			cleanupWorkDir(workDir)
			return "", dropped, errE
		}
		if len(failed) > 0 {
			cleanupWorkDir(workDir)
			_ = rf.postComment(ctx, mr, formatFailureMessage(orig, failed))
			return "", dropped, detailPaths(errors.New(ErrReformatFailed), failed)
		}

		if err := checkTreeSanity(ctx, wa, changedPaths); err != nil {
			cleanupWorkDir(workDir)
			_ = rf.postComment(ctx, mr, err.Error())
			return "", dropped, errors.New(ErrDisallowedFiles)
		}

		if _, err := wa.Run(ctx, "add", "-A"); err != nil {
			cleanupWorkDir(workDir)
			return "", dropped, err
		}
		newTreeID, err := wa.Run(ctx, "write-tree")
		cleanupWorkDir(workDir)
		if err != nil {
			return "", dropped, err
		}

		author, dateEnv, errE := rf.authorship(ctx, orig)
		if errE != nil {
			return "", dropped, errE
		}
		committed := rf.Git.WithEnv(dateEnv...)
		newCommit, err := committed.CommitTree(ctx, strings.TrimSpace(newTreeID), rewrittenParents, rf.originalMessage(ctx, orig), author)
		if err != nil {
			return "", dropped, err
		}

		if len(parents) == 1 {
			origEmpty, err := rf.isEmptyDiff(ctx, parents[0], orig)
			if err != nil {
				return "", dropped, err
			}
			newEmpty, err := rf.isEmptyDiff(ctx, rewrittenParents[0], newCommit)
			if err != nil {
				return "", dropped, err
			}
			if !origEmpty && newEmpty {
				mapped[orig] = rewrittenParents[0]
				dropped = append(dropped, orig)
				head = rewrittenParents[0]
				continue
			}
		}

		mapped[orig] = newCommit
		head = newCommit
	}

	if len(dropped) == 0 && head == base {
		_ = rf.postComment(ctx, mr, "This topic is already clean; no reformatting was necessary.")
		return head, dropped, nil
	}

	if err := rf.forcePush(ctx, mr, head); err != nil {
		return head, dropped, err
	}
	if len(dropped) > 0 {
		_ = rf.postComment(ctx, mr, droppedCommitsMessage(dropped))
	}
	return head, dropped, nil
}

func (rf *Reformatter) isMergeCommit(ctx context.Context, commit host.CommitID) (bool, errors.E) {
	parents, err := rf.parentsOf(ctx, commit)
	if err != nil {
		return false, err
	}
	return len(parents) > 1, nil
}

func (rf *Reformatter) parentsOf(ctx context.Context, commit host.CommitID) ([]host.CommitID, errors.E) {
	out, err := rf.Git.Run(ctx, "rev-parse", string(commit)+"^@")
	if err != nil {
		return nil, err
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil, nil
	}
	var parents []host.CommitID
	for _, line := range strings.Split(out, "\n") {
		parents = append(parents, host.CommitID(line))
	}
	return parents, nil
}

func (rf *Reformatter) changedPaths(ctx context.Context, commit host.CommitID) ([]string, errors.E) {
	out, err := rf.Git.Run(ctx, "diff-tree", "--no-commit-id", "--name-only", "-r", string(commit))
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// unionPaths returns the deduplicated concatenation of changed and extra,
// preserving changed's order first.
func unionPaths(changed, extra []string) []string {
	seen := make(map[string]struct{}, len(changed)+len(extra))
	paths := make([]string, 0, len(changed)+len(extra))
	for _, p := range changed {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	for _, p := range extra {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths
}

func (rf *Reformatter) isEmptyDiff(ctx context.Context, a, b host.CommitID) (bool, errors.E) {
	return rf.Git.DiffEmpty(ctx, a, b)
}

// authorship reads commit's original author identity and date, returning
// an Identity to pass through CommitTree (which stamps GIT_AUTHOR_NAME/
// GIT_AUTHOR_EMAIL itself) plus the GIT_AUTHOR_DATE environment override
// CommitTree does not set on its own. The committer is left as the acting
// identity (system default), matching how the original reformatter
// re-stamps rewritten commits.
func (rf *Reformatter) authorship(ctx context.Context, commit host.CommitID) (host.Identity, []string, errors.E) {
	out, err := rf.Git.Run(ctx, "show", "-s", `--format=%an%n%ae%n%ad`, string(commit))
	if err != nil {
		return host.Identity{}, nil, err
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		return host.Identity{}, nil, errors.Errorf("unexpected `git show` output parsing authorship of %s", commit)
	}
	author := host.Identity{Name: lines[0], Email: lines[1]}
	dateEnv := []string{"GIT_AUTHOR_DATE=" + lines[2]}
	return author, dateEnv, nil
}

func (rf *Reformatter) originalMessage(ctx context.Context, commit host.CommitID) string {
	out, err := rf.Git.Run(ctx, "show", "-s", "--format=%B", string(commit))
	if err != nil {
		return ""
	}
	return out
}

func (rf *Reformatter) forcePush(ctx context.Context, mr host.MergeRequest, newHead host.CommitID) errors.E {
	local := "refs/heads/" + mr.SourceBranch + "-ghostflow-reformat"
	if err := rf.Git.UpdateRef(ctx, local, newHead); err != nil {
		return err
	}
	_, err := rf.Git.Run(ctx, "push", "--force-with-lease="+mr.SourceBranch+":"+string(mr.Commit.ID), rf.Remote, local+":refs/heads/"+mr.SourceBranch)
	return err
}

func (rf *Reformatter) postComment(ctx context.Context, mr host.MergeRequest, content string) errors.E {
	if err := rf.Service.PostMRComment(ctx, mr, content); err != nil {
		logCommentFailure(mr.ID, err)
	}
	return nil
}

func formatFailureMessage(commit host.CommitID, paths []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Failed to format the following files in %s:\n", commit)
	for _, p := range paths {
		fmt.Fprintf(&b, "- `%s`\n", p)
	}
	return b.String()
}

func droppedCommitsMessage(dropped []host.CommitID) string {
	var b strings.Builder
	b.WriteString("The following commits became empty after reformatting and were dropped:\n")
	for _, c := range dropped {
		fmt.Fprintf(&b, "- `%s`\n", c)
	}
	return b.String()
}

func detailPaths(err errors.E, paths []string) errors.E {
	errors.Details(err)["paths"] = paths
	return err
}
