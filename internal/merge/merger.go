// Package merge implements the merge engine (spec.md §4.1): single-target
// merge_mr and multi-target merge_many (backport), with topologically
// sorted into-branch propagation and a pluggable MergePolicy trailer
// filter. Grounded on ghostflow/src/actions/merge/{simple,settings,backport,
// trailers,policy}.rs.
package merge

import (
	"context"
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

const mergeRequestTrailerToken = "Merge-request"

// Merger drives merges for one project against one hosting service.
type Merger struct {
	Git     *gitdriver.Context
	Service host.Service
	Remote  string
	Project string
}

// New returns a Merger for a bound git context and hosting service.
func New(git *gitdriver.Context, svc host.Service, remote, project string) *Merger {
	return &Merger{Git: git, Service: svc, Remote: remote, Project: project}
}

// MergeMR performs a single-target merge (spec.md §4.1 "Public contract").
func (m *Merger) MergeMR(ctx context.Context, mr host.MergeRequest, identity host.Identity, when time.Time, settings *MergeSettings) (Result, errors.E) {
	return m.MergeMany(ctx, mr, identity, when, []MergeInformation{{Settings: settings}})
}

// MergeMany performs the backport case: one merge request merged into
// several target branches, each possibly from a different point on the
// topic (spec.md §4.1 "Public contract", ghostflow/.../backport.rs).
func (m *Merger) MergeMany(ctx context.Context, mr host.MergeRequest, identity host.Identity, when time.Time, targets []MergeInformation) (Result, errors.E) {
	if mr.WorkInProgress {
		_ = m.postComment(ctx, mr, "This merge request is still a work in progress.")
		return Failed, errors.New(ErrWorkInProgress)
	}

	if mr.SourceRepo == nil {
		_ = m.postComment(ctx, mr, "The source repository for this merge request is no longer accessible.")
		return Failed, errors.New(ErrInaccessibleSource)
	}
	if err := m.Service.FetchMR(ctx, m.Git, mr); err != nil {
		return Failed, errors.Wrap(err, "cannot fetch merge request head")
	}

	seenBranches := mapset.NewSet[string]()
	for _, target := range targets {
		if seenBranches.Contains(target.Settings.Branch) {
			return Failed, detail(errors.New(ErrDuplicateTargetBranch), "branch", target.Settings.Branch)
		}
		seenBranches.Add(target.Settings.Branch)
	}

	pushRefs := map[string]host.CommitID{}
	fromBranches := map[string][]string{}
	renamer := map[string]branchInfo{}
	quiet := true

	for _, target := range targets {
		commit := mr.Commit.ID
		if target.Commit != nil {
			commit = *target.Commit
		}

		result, mergedCommit, err := m.mergeOneTarget(ctx, mr, identity, when, target.Settings, commit)
		if err != nil || result != Success {
			return result, err
		}

		pushRefs[target.Settings.Branch] = mergedCommit
		renamer[target.Settings.Branch] = branchInfo{Name: target.Settings.MergeName(), Elide: target.Settings.ElideBranchName}
		quiet = quiet && target.Settings.IsQuiet()
		registerIntoBranches(target.Settings.Branch, target.Settings.IntoBranches, fromBranches)
	}

	order, ok := topologicalSort(targets)
	if !ok {
		return Failed, errors.New(ErrCircularIntoBranches)
	}

	if err := m.performUpdateMerges(ctx, order, fromBranches, pushRefs, renamer, identity, when); err != nil {
		return Failed, err
	}

	if err := m.pushRefs(ctx, mr, pushRefs, quiet); err != nil {
		return PushFailed, err
	}

	return Success, nil
}

// mergeOneTarget runs the per-target merge protocol of spec.md §4.1 steps
// 1-7 for a single (settings, commit) pair.
func (m *Merger) mergeOneTarget(ctx context.Context, mr host.MergeRequest, identity host.Identity, when time.Time, settings *MergeSettings, commit host.CommitID) (Result, host.CommitID, errors.E) {
	target, errE := m.Git.RevParse(ctx, settings.Branch)
	if errE != nil {
		return Failed, "", errE
	}

	state, errE := commitState(ctx, m.Git, target, commit)
	if errE != nil {
		return Failed, "", errE
	}
	switch state {
	case commitUnrelated:
		return Failed, "", detail(errors.New(ErrUnrelatedCommit), "commit", commit)
	case commitOnTarget:
		return Failed, "", detail(errors.New(ErrMergedCommit), "commit", commit)
	}

	status, errE := m.Git.Mergeable(ctx, target, commit)
	if errE != nil {
		return Failed, "", errE
	}
	if status == gitdriver.NoCommonHistory || status == gitdriver.AlreadyMerged {
		_ = m.postComment(ctx, mr, unmergedStatusMessage(settings.Branch, status))
		if status == gitdriver.NoCommonHistory {
			return Failed, "", errors.New(ErrNoCommonHistory)
		}
		return Failed, "", errors.New(ErrAlreadyMerged)
	}

	isAncestor, errE := m.Git.IsAncestor(ctx, target, commit)
	if errE != nil {
		return Failed, "", errE
	}
	if settings.MergeTopology.mustFastForward() && !isAncestor {
		_ = m.postComment(ctx, mr, noFastForwardPossibleMessage(settings.Branch))
		return Failed, "", errors.New(ErrFastForwardNotPossible)
	}
	if settings.MergeTopology.allowFastForward() && isAncestor {
		return Success, commit, nil
	}

	bases, errE := m.Git.MergeBase(ctx, target, commit)
	if errE != nil {
		return Failed, "", errE
	}

	workDir, errE := newTempWorkDir()
	if errE != nil {
		return Failed, "", errE
	}
	defer cleanupWorkDir(workDir)
	wa := m.Git.NewWorkArea(workDir)

	mergeCmd, conflicts, errE := wa.ThreeWayMerge(ctx, target, commit, bases)
	if errE != nil {
		return Failed, "", errE
	}
	if len(conflicts) > 0 {
		_ = m.postComment(ctx, mr, conflictMessage(settings.Branch, conflicts))
		return Failed, "", detail(errors.New(ErrMergeConflict), "paths", conflicts)
	}

	trailers, reasons, errE := m.resolveTrailers(ctx, mr, settings)
	if errE != nil {
		return Failed, "", errE
	}
	if len(reasons) > 0 {
		_ = m.postComment(ctx, mr, policyRejectionMessage(settings.Branch, reasons))
		return Failed, "", detail(errors.New(ErrPolicyRejected), "reasons", reasons)
	}

	message := m.buildCommitMessage(ctx, mr, settings, target, commit, trailers)

	mergeCmd.Parents = []host.CommitID{target, commit}
	committed := m.Git.WithEnv("GIT_AUTHOR_DATE=" + when.Format(time.RFC3339))
	mergedCommit, errE := committed.CommitTree(ctx, mergeCmd.TreeID, mergeCmd.Parents, message, identity)
	if errE != nil {
		return Failed, "", errE
	}

	return Success, mergedCommit, nil
}

func (m *Merger) resolveTrailers(ctx context.Context, mr host.MergeRequest, settings *MergeSettings) ([]string, []string, errors.E) {
	resolved, errE := collectTrailers(ctx, m.Service, mr, m.Project)
	if errE != nil {
		return nil, nil, errE
	}

	filter := settings.Policy.FilterFor(mr)
	for _, rt := range resolved {
		filter.ProcessTrailer(rt.trailer, rt.user)
	}
	approved, reasons := filter.Result()
	if len(reasons) > 0 {
		return nil, reasons, nil
	}

	lines := make([]string, 0, len(approved)+1)
	for _, t := range approved {
		lines = append(lines, t.Token+": "+t.Value)
	}
	lines = append(lines, fmt.Sprintf("%s: %s", mergeRequestTrailerToken, mr.Reference))
	return lines, nil, nil
}

func (m *Merger) buildCommitMessage(ctx context.Context, mr host.MergeRequest, settings *MergeSettings, target, commit host.CommitID, trailerLines []string) string {
	var b strings.Builder

	title := fmt.Sprintf("Merge topic '%s'", mr.SourceBranch)
	if !settings.ElideBranchName && settings.MergeBranchAs != settings.Branch {
		title += " into " + settings.MergeName()
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	if summary, ok := extractFencedBlock(mr.Description, "message"); ok {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}

	if settings.LogLimit != 0 {
		lines, _ := m.Git.LogSummary(ctx, target, commit, settings.LogLimit)
		if len(lines) > 0 {
			b.WriteString(strings.Join(lines, "\n"))
			b.WriteString("\n\n")
		}
	}

	b.WriteString(strings.Join(trailerLines, "\n"))
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func (m *Merger) postComment(ctx context.Context, mr host.MergeRequest, content string) errors.E {
	if err := m.Service.PostMRComment(ctx, mr, content); err != nil {
		// Best-effort: logged, never escalated (spec.md §4.1 "Failure
		// semantics").
		logCommentFailure(mr, err)
	}
	return nil
}

func unmergedStatusMessage(branch string, status gitdriver.MergeStatus) string {
	reason := "has no common history with"
	if status == gitdriver.AlreadyMerged {
		reason = "is already merged into"
	}
	return fmt.Sprintf("This merge request may not be merged into `%s` because the commit %s the target branch.", branch, reason)
}

func noFastForwardPossibleMessage(branch string) string {
	return fmt.Sprintf("This merge request may not be merged into `%s`: a fast-forward merge is not possible.", branch)
}

func conflictMessage(branch string, conflicts []gitdriver.Conflict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This merge request may not be merged into `%s` because of conflicts in:\n", branch)
	for _, c := range conflicts {
		fmt.Fprintf(&b, "- `%s`\n", c.Path)
	}
	return b.String()
}

func policyRejectionMessage(branch string, reasons []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This merge request may not be merged into `%s` because:\n", branch)
	for _, r := range reasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}
