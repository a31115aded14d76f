// Package stage implements the Stager (spec.md §4.2): an ordered queue of
// topic merges replayed onto a base, producing a head commit for CI, plus
// the Stage action that reflects results back to the hosting service and
// manages refs/stage/* snapshots. Grounded on ghostflow/src/actions/stage.rs.
package stage

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

// Topic identifies a merge request's current head for staging.
type Topic struct {
	Commit host.CommitID
	Who    host.Identity
	When   time.Time
	ID     int64
	Name   string
	URL    string
}

// CandidateTopic is a staging request: OldID is set iff the topic was
// already on the stage (an update of an existing staged topic).
type CandidateTopic struct {
	OldID *Topic
	NewID Topic
}

// StagedTopic is a topic currently on the stage, plus the merge commit
// produced the last time it was integrated.
type StagedTopic struct {
	Topic       Topic
	MergeCommit host.CommitID
}

// UnstageReason explains why a topic was dropped during a rebuild.
type UnstageReason int

const (
	UnstageConflict UnstageReason = iota
	UnstageRemoved
	UnstageBaseUpdate
)

// MergeStatus mirrors gitdriver.MergeStatus for topics that could not be
// integrated at all (no common history / already merged).
type MergeStatus = gitdriver.MergeStatus

// IntegrationResult is the outcome for a single topic during a rebuild.
type IntegrationResult struct {
	Topic         Topic
	Staged        bool
	UnstageReason *UnstageReason
	ConflictPaths []gitdriver.Conflict
	Unmerged      *MergeStatus
}

// Stager maintains (base, head, topics) per spec.md §3/§4.2.
type Stager struct {
	Git    *gitdriver.Context
	Base   host.CommitID
	Head   host.CommitID
	Topics []StagedTopic
}

// New returns a Stager for branch rooted at base.
func New(git *gitdriver.Context, base host.CommitID) *Stager {
	return &Stager{Git: git, Base: base, Head: base}
}

// Stage implements stage(candidate): replace or append the candidate in
// the ordered topic list, then rebuild head from base.
func (s *Stager) Stage(ctx context.Context, candidate CandidateTopic, reason UnstageReason) ([]IntegrationResult, errors.E) {
	effective := s.effectiveTopics(candidate)
	return s.rebuild(ctx, effective, reason)
}

// Unstage implements unstage(topic): remove by id, rebuild.
func (s *Stager) Unstage(ctx context.Context, id int64) ([]IntegrationResult, errors.E) {
	var effective []Topic
	for _, st := range s.Topics {
		if st.Topic.ID != id {
			effective = append(effective, st.Topic)
		}
	}
	return s.rebuild(ctx, effective, UnstageRemoved)
}

// BaseUpdate implements base_update(new_base): replace base, rebuild.
func (s *Stager) BaseUpdate(ctx context.Context, newBase host.CommitID) ([]IntegrationResult, errors.E) {
	s.Base = newBase
	var effective []Topic
	for _, st := range s.Topics {
		effective = append(effective, st.Topic)
	}
	return s.rebuild(ctx, effective, UnstageBaseUpdate)
}

// Clear implements clear(): empty the topic list; head := base; return the
// prior topics.
func (s *Stager) Clear() []StagedTopic {
	prior := s.Topics
	s.Topics = nil
	s.Head = s.Base
	return prior
}

func (s *Stager) effectiveTopics(candidate CandidateTopic) []Topic {
	var effective []Topic
	replaced := false
	for _, st := range s.Topics {
		if candidate.OldID != nil && st.Topic.ID == candidate.OldID.ID {
			effective = append(effective, candidate.NewID)
			replaced = true
			continue
		}
		effective = append(effective, st.Topic)
	}
	if !replaced {
		effective = append(effective, candidate.NewID)
	}
	return effective
}

// rebuild replays topics onto base in order, producing a new head and one
// IntegrationResult per topic touched (spec.md §4.2 "Operations" - stage
// algorithm). Topics that fail to integrate are dropped from the ordered
// list but the rebuild continues with the rest.
func (s *Stager) rebuild(ctx context.Context, topics []Topic, unstageReason UnstageReason) ([]IntegrationResult, errors.E) {
	head := s.Base
	var newStaged []StagedTopic
	var results []IntegrationResult

	for _, topic := range topics {
		status, errE := s.Git.Mergeable(ctx, head, topic.Commit)
		if errE != nil {
			return nil, errE
		}
		if status != gitdriver.Mergeable {
			st := status
			results = append(results, IntegrationResult{Topic: topic, Unmerged: &st})
			continue
		}

		bases, errE := s.Git.MergeBase(ctx, head, topic.Commit)
		if errE != nil {
			return nil, errE
		}

		workDir, errE := newTempWorkDir()
		if errE != nil {
			return nil, errE
		}
		wa := s.Git.NewWorkArea(workDir)
		mergeCmd, conflicts, errE := wa.ThreeWayMerge(ctx, head, topic.Commit, bases)
		cleanupWorkDir(workDir)
		if errE != nil {
			return nil, errE
		}
		if len(conflicts) > 0 {
			reason := unstageReason
			results = append(results, IntegrationResult{Topic: topic, UnstageReason: &reason, ConflictPaths: conflicts})
			continue
		}

		message := fmt.Sprintf("Merge topic '%s'", topic.Name)
		committed := s.Git.WithEnv("GIT_AUTHOR_DATE=" + topic.When.Format(time.RFC3339))
		merged, errE := committed.CommitTree(ctx, mergeCmd.TreeID, []host.CommitID{head, topic.Commit}, message, topic.Who)
		if errE != nil {
			return nil, errE
		}

		head = merged
		newStaged = append(newStaged, StagedTopic{Topic: topic, MergeCommit: merged})
		results = append(results, IntegrationResult{Topic: topic, Staged: true})
	}

	s.Head = head
	s.Topics = newStaged
	return results, nil
}
