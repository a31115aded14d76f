package merge

import (
	"github.com/ghostflow/ghostflow/internal/host"
)

// IntoBranch is an additional target branch that should receive a merge of
// its parent's resulting commit whenever the parent advances. It forms a
// rooted DAG; cycles are rejected at propagation time (spec.md §3, §8.7).
type IntoBranch struct {
	Name  string
	Chain []IntoBranch
}

// MergeTopology controls whether a fast-forward is attempted, required, or
// skipped entirely (spec.md §3, §4.1 step 3).
type MergeTopology int

const (
	NoFastForward MergeTopology = iota
	FastForwardIfPossible
	FastForwardOnly
)

func (t MergeTopology) allowFastForward() bool {
	return t == FastForwardIfPossible || t == FastForwardOnly
}

func (t MergeTopology) mustFastForward() bool {
	return t == FastForwardOnly
}

// MergeSettings configures a single target of a merge_mr/merge_many call.
type MergeSettings struct {
	Branch          string
	MergeBranchAs   string
	IntoBranches    []IntoBranch
	Policy          MergePolicy
	Quiet           bool
	LogLimit        int
	ElideBranchName bool
	MergeTopology   MergeTopology
}

// NewMergeSettings returns settings for a single target branch with
// sensible defaults (no fast-forward, no into-branches, no log limit).
func NewMergeSettings(branch string, policy MergePolicy) *MergeSettings {
	return &MergeSettings{
		Branch:        branch,
		Policy:        policy,
		LogLimit:      -1,
		MergeTopology: NoFastForward,
	}
}

func (s *MergeSettings) IsQuiet() bool { return s.Quiet }

// MergeName is the name used in commit-message titles: MergeBranchAs if
// set, otherwise Branch.
func (s *MergeSettings) MergeName() string {
	if s.MergeBranchAs != "" {
		return s.MergeBranchAs
	}
	return s.Branch
}

func (s *MergeSettings) AddIntoBranches(branches ...IntoBranch) *MergeSettings {
	s.IntoBranches = append(s.IntoBranches, branches...)
	return s
}

// MergeInformation is a single target of a merge_many call: its settings,
// plus an optional commit override (the backport may merge a different
// point on the topic for each target).
type MergeInformation struct {
	Settings *MergeSettings
	Commit   *host.CommitID
}

// MergeActionResult carries the outcome for a single target branch.
type MergeActionResult struct {
	Branch string
	Result Result
	Commit host.CommitID
}
