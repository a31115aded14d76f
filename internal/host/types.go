// Package host defines the hosting-service abstraction shared by the
// merge, stage, reformat, and peripheral actions: a uniform view over
// GitHub and GitLab (spec.md §4.4), plus the data model of spec.md §3.
package host

import "time"

// CommitID is an opaque object name (hex string).
type CommitID string

// Identity is a (name, email) pair used to stamp authorship.
type Identity struct {
	Name  string
	Email string
}

// Repo is a hosted repository, optionally forked from another.
type Repo struct {
	Name       string
	URL        string
	ForkedFrom *Repo
}

// ForkRoot walks the ForkedFrom chain to the repository with no parent.
func (r *Repo) ForkRoot() *Repo {
	root := r
	for root.ForkedFrom != nil {
		root = root.ForkedFrom
	}
	return root
}

// Commit is a located commit: a repository, the object id, the refname it
// was fetched through (if any), and its last known pipeline.
type Commit struct {
	Repo         *Repo
	Refname      string
	ID           CommitID
	LastPipeline *int64
}

// User identifies an account on the hosting service.
type User struct {
	Handle string
	Name   string
	Email  string
}

// Identity projects a User onto the Name/Email pair git commits carry.
func (u User) Identity() Identity {
	return Identity{Name: u.Name, Email: u.Email}
}

// MergeRequest is a proposal to integrate SourceBranch into TargetBranch.
// SourceRepo is nil iff the fork has been deleted or made private.
type MergeRequest struct {
	SourceRepo        *Repo
	SourceBranch      string
	TargetRepo        *Repo
	TargetBranch      string
	ID                int64
	URL               string
	WorkInProgress    bool
	Description       string
	OldCommit         *Commit
	Commit            Commit
	Author            User
	Reference         string
	RemoveSourceBranch bool
}

// CommitStatusState is the state of a single commit status.
type CommitStatusState int

const (
	StatusPending CommitStatusState = iota
	StatusRunning
	StatusSuccess
	StatusFailed
)

// PipelineState is the state of a CI pipeline.
type PipelineState int

const (
	PipelineManual PipelineState = iota
	PipelineInProgress
	PipelineCanceled
	PipelineFailed
	PipelineSuccess
)

// IsComplete reports whether the pipeline has reached a terminal state.
func (s PipelineState) IsComplete() bool {
	switch s {
	case PipelineCanceled, PipelineFailed, PipelineSuccess:
		return true
	default:
		return false
	}
}

// PendingCommitStatus describes a status to be posted; it is transient and
// consumed by a single PostCommitStatus call.
type PendingCommitStatus struct {
	Commit      Commit
	State       CommitStatusState
	Name        string
	Description string
	TargetURL   string
}

// CreateCommitStatus builds a pending status for a commit.
func (c Commit) CreateCommitStatus(state CommitStatusState, name, description string) PendingCommitStatus {
	return PendingCommitStatus{Commit: c, State: state, Name: name, Description: description}
}

// CreateCommitStatus builds a pending status for a merge request's head
// commit.
func (mr MergeRequest) CreateCommitStatus(state CommitStatusState, name, description string) PendingCommitStatus {
	return mr.Commit.CreateCommitStatus(state, name, description)
}

// Comment is a single MR comment or review note.
type Comment struct {
	Author        User
	Content       string
	CreatedAt     time.Time
	IsSystem      bool
	IsBranchUpdate bool
}

// Award is an emoji reaction on a merge request.
type Award struct {
	Name   string
	Author User
}

// Issue identifies an issue that may be closed by a merge request.
type Issue struct {
	Project string
	Number  int64
}
