package merge

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/host"
)

// branchInfo carries the per-target-branch naming and message-elision
// settings (spec.md §4.1 "Into-branch propagation") needed to compose an
// update-merge commit message.
type branchInfo struct {
	Name  string
	Elide bool
}

// performUpdateMerges walks the topological pop order, recording an
// "update merge" — an `-s ours`-equivalent commit that keeps the target's
// tree exactly but adds the incoming branch as an extra parent — for every
// branch that has queued incoming sources (spec.md §4.1 "Into-branch
// propagation" steps 2-4).
func (m *Merger) performUpdateMerges(
	ctx context.Context,
	order []string,
	fromBranches map[string][]string,
	pushRefs map[string]host.CommitID,
	renamer map[string]branchInfo,
	identity host.Identity,
	when time.Time,
) errors.E {
	for _, branch := range order {
		sources, ok := fromBranches[branch]
		if !ok || len(sources) == 0 {
			continue
		}

		targetCommit, ok := pushRefs[branch]
		if !ok {
			tip, err := m.Git.RevParse(ctx, branch)
			if err != nil {
				return errors.Wrapf(err, "cannot resolve current tip of into-branch %q", branch)
			}
			targetCommit = tip
		}

		for _, source := range sources {
			sourceCommit, ok := pushRefs[source]
			if !ok {
				return detail(errors.New(ErrLeftoverBranches), "branch", source)
			}

			treeID, err := m.treeOf(ctx, targetCommit)
			if err != nil {
				return err
			}

			message := updateMergeMessage(renamer, source, branch)
			committed := m.Git.WithEnv("GIT_AUTHOR_DATE=" + when.Format(time.RFC3339))
			merged, err := committed.CommitTree(ctx, treeID, []host.CommitID{targetCommit, sourceCommit}, message, identity)
			if err != nil {
				return err
			}
			targetCommit = merged
		}

		pushRefs[branch] = targetCommit
	}

	return nil
}

func (m *Merger) treeOf(ctx context.Context, commit host.CommitID) (string, errors.E) {
	out, err := m.Git.Run(ctx, "rev-parse", string(commit)+"^{tree}")
	if err != nil {
		return "", err
	}
	return trimNewline(out), nil
}

func updateMergeMessage(renamer map[string]branchInfo, source, target string) string {
	sourceName := nameOrBranch(renamer, source)
	targetName := nameOrBranch(renamer, target)
	if renamer[target].Elide {
		return fmt.Sprintf("Merge branch '%s'", sourceName)
	}
	return fmt.Sprintf("Merge branch '%s' into %s", sourceName, targetName)
}

func nameOrBranch(renamer map[string]branchInfo, branch string) string {
	if info, ok := renamer[branch]; ok && info.Name != "" {
		return info.Name
	}
	return branch
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
