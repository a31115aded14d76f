package stage

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

const stagerStatusName = "ghostflow-stager"

// TagStagePolicy controls whether Tag clears the stage after snapshotting
// it (spec.md §4.2 "Operations" - tag).
type TagStagePolicy int

const (
	KeepTopics TagStagePolicy = iota
	ClearStage
)

// Action wires a Stager to a branch, remote, and hosting service,
// reflecting every integration result back as a commit status and
// comment (spec.md §4.2 "External effects").
type Action struct {
	Stager  *Stager
	Branch  string
	Remote  string
	Service host.Service
	Quiet   bool
}

// unstagedStatusDesc and unmergedStatusDesc restore the original's exact
// short message catalogs (ghostflow/src/actions/stage.rs), since spec.md
// §4.2 only gives an illustrative example ("staged",
// "unstaged: <n> conflicting paths").
func unstagedStatusDesc(r IntegrationResult) string {
	switch {
	case r.UnstageReason != nil && *r.UnstageReason == UnstageConflict:
		return fmt.Sprintf("unstaged: %d conflicting paths", len(r.ConflictPaths))
	case r.UnstageReason != nil && *r.UnstageReason == UnstageRemoved:
		return "unstaged: removed from the stage"
	case r.UnstageReason != nil && *r.UnstageReason == UnstageBaseUpdate:
		return "unstaged: base branch update"
	default:
		return "unstaged"
	}
}

func unmergedStatusDesc(status gitdriver.MergeStatus) string {
	switch status {
	case gitdriver.NoCommonHistory:
		return "unmerged: no common history with the stage"
	case gitdriver.AlreadyMerged:
		return "unmerged: already merged"
	default:
		return "unmerged"
	}
}

func unstagedStatusMessage(r IntegrationResult) string {
	if r.UnstageReason != nil && *r.UnstageReason == UnstageConflict {
		var b string
		for _, c := range r.ConflictPaths {
			b += fmt.Sprintf("- `%s`\n", c.Path)
		}
		return fmt.Sprintf("This topic was unstaged due to conflicts in:\n%s", b)
	}
	return "This topic was unstaged."
}

func unmergedStatusMessage(status gitdriver.MergeStatus) string {
	if status == gitdriver.AlreadyMerged {
		return "This topic appears to already be merged into the stage base."
	}
	return "This topic shares no common history with the stage base."
}

func mrUpdateReason(r IntegrationResult) string {
	if r.Staged {
		return "staged"
	}
	if r.UnstageReason != nil {
		return unstagedStatusDesc(r)
	}
	if r.Unmerged != nil {
		return unmergedStatusDesc(*r.Unmerged)
	}
	return "unknown"
}

// reflectResults reflects a rebuild's results to the hosting service: a commit
// status per touched topic, plus a comment for anything not cleanly
// staged.
func (a *Action) reflectResults(ctx context.Context, results []IntegrationResult, mrs map[int64]host.MergeRequest) {
	for _, r := range results {
		mr, ok := mrs[r.Topic.ID]
		if !ok {
			continue
		}

		state := host.StatusSuccess
		description := mrUpdateReason(r)
		if !r.Staged {
			state = host.StatusFailed
		}

		status := mr.CreateCommitStatus(state, stagerStatusName, description)
		if err := a.Service.PostCommitStatus(ctx, status); err != nil {
			logStageNotificationFailure(mr, err)
		}

		if r.Staged || a.Quiet {
			continue
		}

		var comment string
		switch {
		case r.UnstageReason != nil:
			comment = unstagedStatusMessage(r)
		case r.Unmerged != nil:
			comment = unmergedStatusMessage(*r.Unmerged)
		}
		if comment != "" {
			if err := a.Service.PostMRComment(ctx, mr, comment); err != nil {
				logStageNotificationFailure(mr, err)
			}
		}
	}
}

// StageMergeRequest stages mr's current head, reflecting the rebuild
// results to the hosting service.
func (a *Action) StageMergeRequest(ctx context.Context, mr host.MergeRequest, topicID int64, old *Topic) ([]IntegrationResult, errors.E) {
	candidate := CandidateTopic{
		OldID: old,
		NewID: Topic{
			Commit: mr.Commit.ID,
			Who:    host.Identity{Name: mr.Author.Name, Email: mr.Author.Email},
			When:   time.Now(),
			ID:     topicID,
			Name:   mr.SourceBranch,
			URL:    mr.URL,
		},
	}

	reason := UnstageConflict
	results, err := a.Stager.Stage(ctx, candidate, reason)
	if err != nil {
		return nil, err
	}

	a.reflectResults(ctx, results, map[int64]host.MergeRequest{topicID: mr})
	if err := a.updateHeadRef(ctx); err != nil {
		return results, err
	}
	return results, nil
}

// UnstageMergeRequest removes a topic and reflects the resulting rebuild.
func (a *Action) UnstageMergeRequest(ctx context.Context, mr host.MergeRequest, topicID int64) ([]IntegrationResult, errors.E) {
	results, err := a.Stager.Unstage(ctx, topicID)
	if err != nil {
		return nil, err
	}
	a.reflectResults(ctx, results, map[int64]host.MergeRequest{topicID: mr})
	if err := a.updateHeadRef(ctx); err != nil {
		return results, err
	}
	return results, nil
}

// UpdateStageBase replaces the base commit and rebuilds.
func (a *Action) UpdateStageBase(ctx context.Context, newBase host.CommitID, mrs map[int64]host.MergeRequest) ([]IntegrationResult, errors.E) {
	results, err := a.Stager.BaseUpdate(ctx, newBase)
	if err != nil {
		return nil, err
	}
	a.reflectResults(ctx, results, mrs)
	if err := a.updateHeadRef(ctx); err != nil {
		return results, err
	}
	return results, nil
}

// updateHeadRef force-pushes refs/stage/<branch>/head after any mutation
// (spec.md §4.2 "Head ref push").
func (a *Action) updateHeadRef(ctx context.Context) errors.E {
	ref := "refs/stage/" + a.Branch + "/head"
	if err := a.Stager.Git.UpdateRef(ctx, ref, a.Stager.Head); err != nil {
		return err
	}
	return a.Stager.Git.PushAtomic(ctx, a.Remote, map[string]string{ref: ref})
}

// Tag implements tag(reason, date_format, policy): snapshot head under
// refs/stage/<branch>/<reason>/{latest,<date>}, both pushed atomically,
// optionally clearing the stage afterward (spec.md §4.2 "Operations").
func (a *Action) Tag(ctx context.Context, reason, dateFormat string, policy TagStagePolicy, now time.Time, mrs map[int64]host.MergeRequest) ([]StagedTopic, errors.E) {
	base := "refs/stage/" + a.Branch + "/" + reason
	latestRef := base + "/latest"
	dateRef := base + "/" + now.Format(dateFormat)

	if err := a.Stager.Git.UpdateRef(ctx, latestRef, a.Stager.Head); err != nil {
		return nil, err
	}
	if err := a.Stager.Git.UpdateRef(ctx, dateRef, a.Stager.Head); err != nil {
		return nil, err
	}
	if err := a.Stager.Git.PushAtomic(ctx, a.Remote, map[string]string{
		latestRef: latestRef,
		dateRef:   dateRef,
	}); err != nil {
		return nil, err
	}

	var cleared []StagedTopic
	if policy == ClearStage {
		cleared = a.Stager.Clear()
		if err := a.updateHeadRef(ctx); err != nil {
			return cleared, err
		}
		for _, st := range cleared {
			if mr, ok := mrs[st.Topic.ID]; ok {
				_ = a.Service.PostMRComment(ctx, mr, "This topic was pushed for testing and unstaged.")
			}
		}
		return cleared, nil
	}

	for _, st := range a.Stager.Topics {
		if mr, ok := mrs[st.Topic.ID]; ok {
			_ = a.Service.PostMRComment(ctx, mr, "This topic was pushed for testing.")
		}
	}
	return nil, nil
}

func logStageNotificationFailure(mr host.MergeRequest, err error) {
	logStageWarn("merge_request", mr.Reference, err)
}
