package merge

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

// commitMergeRequestState is CommitMergeRequestState from
// ghostflow/src/utils/mr.rs: where a commit sits relative to a merge
// request's target branch.
type commitMergeRequestState int

const (
	commitOnMergeRequest commitMergeRequestState = iota
	commitOnTarget
	commitUnrelated
)

// commitState implements commit_state(): the commit is "on target" if it
// is already reachable from target, "unrelated" if target and commit share
// no merge base at all, and "on merge request" otherwise.
func commitState(ctx context.Context, git *gitdriver.Context, target, commit host.CommitID) (commitMergeRequestState, errors.E) {
	onTarget, err := git.IsAncestor(ctx, commit, target)
	if err != nil {
		return 0, err
	}
	if onTarget {
		return commitOnTarget, nil
	}

	bases, err := git.MergeBase(ctx, target, commit)
	if err != nil {
		return 0, err
	}
	if len(bases) == 0 {
		return commitUnrelated, nil
	}

	return commitOnMergeRequest, nil
}
