package host

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
)

// Error kinds returned by Service implementations, modeled as distinct
// sentinel messages per spec.md §7 rather than a parallel type hierarchy,
// following the teacher's own errors.E-only idiom (no custom error types
// anywhere in tozd-gitlab-config). Details are attached with errors.Details.
const (
	ErrService        = "hosting service returned an error"
	ErrHost           = "hosting service host is unreachable"
	ErrFetch          = "cannot fetch ref from hosting service"
	ErrUnnamedCommit  = "commit has no refname to fetch"
	ErrNoRepository   = "source repository is unavailable"
)

// Service is the uniform view of a hosting service (GitHub or GitLab) that
// the merge, stage, reformat, and peripheral actions consume (spec.md
// §4.4).
type Service interface {
	// ServiceUser returns the identity the system acts as.
	ServiceUser(ctx context.Context) (User, errors.E)

	// FetchCommit fetches commit's refname into gitCtx. Fails with
	// ErrUnnamedCommit if commit has no refname.
	FetchCommit(ctx context.Context, gitCtx *gitdriver.Context, commit Commit) errors.E

	// FetchMR fetches mr's source branch (or pull/PR ref on GitHub) into
	// gitCtx. Fails with ErrNoRepository if mr.SourceRepo is nil.
	FetchMR(ctx context.Context, gitCtx *gitdriver.Context, mr MergeRequest) errors.E

	User(ctx context.Context, project, handle string) (User, errors.E)
	Commit(ctx context.Context, project string, id CommitID) (Commit, errors.E)
	MergeRequest(ctx context.Context, project string, id int64) (MergeRequest, errors.E)
	Repo(ctx context.Context, project string) (Repo, errors.E)

	// GetMRComments returns mr's comments oldest to newest.
	GetMRComments(ctx context.Context, mr MergeRequest) ([]Comment, errors.E)
	PostMRComment(ctx context.Context, mr MergeRequest, content string) errors.E

	GetCommitStatuses(ctx context.Context, commit Commit) ([]PendingCommitStatus, errors.E)
	PostCommitStatus(ctx context.Context, status PendingCommitStatus) errors.E
	// PostReview posts a long-form review alongside a commit status. The
	// default composition (see DefaultPostReview) posts the status first,
	// then — only when description is non-empty — an MR comment.
	PostReview(ctx context.Context, status PendingCommitStatus, mr MergeRequest, description string) errors.E

	GetMRAwards(ctx context.Context, mr MergeRequest) ([]Award, errors.E)
	IssuesClosedByMR(ctx context.Context, mr MergeRequest) ([]Issue, errors.E)
	AddIssueLabels(ctx context.Context, issue Issue, labels []string) errors.E

	// AsPipelineService returns the optional pipeline capability, or false
	// if the service does not support it.
	AsPipelineService() (PipelineService, bool)
}

// PipelineService is the optional capability for services that can run CI
// pipelines (spec.md §4.4, §8.6).
type PipelineService interface {
	Pipeline(ctx context.Context, commit Commit) (Pipeline, errors.E)
	Jobs(ctx context.Context, pipeline Pipeline) ([]PipelineJob, errors.E)
	TriggerPipeline(ctx context.Context, commit Commit, variables map[string]string) (Pipeline, errors.E)
	RetryJob(ctx context.Context, job PipelineJob) errors.E
}

// Pipeline is a CI pipeline run against a commit.
type Pipeline struct {
	Project string // hosting-service project identifier the pipeline belongs to
	ID      int64
	State   PipelineState
}

// PipelineJob is a single job within a Pipeline.
type PipelineJob struct {
	Project string
	ID      int64
	Name    string
	Stage   string // empty when the hosting service has no stage concept (e.g. GitHub Actions)
	State   PipelineState
}

// DefaultPostReview implements the original hosting-service trait's
// default `post_review` composition (ghostflow/src/host/traits.rs): post
// the commit status, and only if description is non-empty, also post an
// MR comment containing it.
func DefaultPostReview(ctx context.Context, svc Service, status PendingCommitStatus, mr MergeRequest, description string) errors.E {
	if err := svc.PostCommitStatus(ctx, status); err != nil {
		return err
	}
	if description == "" {
		return nil
	}
	return svc.PostMRComment(ctx, mr, description)
}
