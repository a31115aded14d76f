package merge

import "gitlab.com/tozd/go/errors"

// Result is the outcome of a merge_mr or merge_many call.
type Result int

const (
	Success Result = iota
	PushFailed
	Failed
)

// Error kinds, modeled as sentinel messages with errors.Details payloads
// (spec.md §7), matching the teacher's errors.E-only idiom.
const (
	ErrWorkInProgress        = "merge request is marked work in progress"
	ErrDuplicateTargetBranch = "same branch requested twice in one multi-target merge"
	ErrUnrelatedCommit       = "commit is unrelated to the merge request"
	ErrMergedCommit          = "commit is already on the target branch"
	ErrNoCommonHistory       = "target and commit share no common history"
	ErrAlreadyMerged         = "commit is already merged into target"
	ErrMergeConflict         = "three-way merge produced conflicts"
	ErrPolicyRejected        = "merge policy rejected the trailer set"
	ErrCircularIntoBranches  = "into-branch graph contains a cycle"
	ErrLeftoverBranches      = "into-branch topological sort did not drain"
	ErrPushFailed            = "atomic push was rejected by the remote"
	ErrInaccessibleSource    = "merge request source repository is unavailable"
	ErrFastForwardNotPossible = "fast-forward merge is not possible"
)

func detail(err errors.E, key string, value interface{}) errors.E {
	errors.Details(err)[key] = value
	return err
}
