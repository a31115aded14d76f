// Package githubhost implements the host.Service contract (spec.md §4.4)
// against the GitHub REST API via google/go-github, layering the
// GitHub-specific installation-token cache (tokencache.go) and the
// exponential-backoff retrying transport (transport.go) spec.md §4.4/§5
// call for. Grounded on the pack's go-github call patterns (see
// other_examples' gh-app-cherry-pick-poc handler.go) generalized from a
// webhook handler to a uniform host.Service.
package githubhost

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v74/github"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

// Service adapts a *github.Client, scoped to one App installation, to
// host.Service.
type Service struct {
	Client         *github.Client
	InstallationID int64
	Remote         string
}

// New builds a Service that authenticates every request with a
// installation token drawn from cache, refreshed through auth, and
// retries 5xx responses per transport.go.
func New(auth *AppAuth, cache *TokenCache, installationID int64, remote string) *Service {
	httpClient := newRetryingHTTPClient(http.DefaultTransport)
	transport := &installationTokenTransport{base: httpClient.Transport, cache: cache, installationID: installationID}
	httpClient.Transport = transport
	return &Service{
		Client:         github.NewClient(httpClient),
		InstallationID: installationID,
		Remote:         remote,
	}
}

// installationTokenTransport attaches a cached installation token as a
// Bearer header to every outgoing request.
type installationTokenTransport struct {
	base           http.RoundTripper
	cache          *TokenCache
	installationID int64
}

func (t *installationTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.cache.Get(req.Context(), t.installationID)
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(req)
}

func splitProject(project string) (owner, repo string, errE errors.E) {
	parts := strings.SplitN(project, "/", 2)
	if len(parts) != 2 {
		return "", "", errors.Errorf("invalid GitHub project %q, expected \"owner/repo\"", project)
	}
	return parts[0], parts[1], nil
}

func (s *Service) ServiceUser(ctx context.Context) (host.User, errors.E) {
	app, _, err := s.Client.Apps.Get(ctx, "")
	if err != nil {
		return host.User{}, errors.Wrap(err, "cannot fetch GitHub App identity")
	}
	return host.User{Handle: app.GetSlug() + "[bot]", Name: app.GetName()}, nil
}

func (s *Service) FetchCommit(ctx context.Context, gitCtx *gitdriver.Context, commit host.Commit) errors.E {
	if commit.Refname == "" {
		return errors.New(host.ErrUnnamedCommit)
	}
	_, err := gitCtx.Run(ctx, "fetch", s.Remote, commit.Refname)
	return err
}

func (s *Service) FetchMR(ctx context.Context, gitCtx *gitdriver.Context, mr host.MergeRequest) errors.E {
	if mr.SourceRepo == nil {
		return errors.New(host.ErrNoRepository)
	}
	ref := "refs/pull/" + strconv.FormatInt(mr.ID, 10) + "/head"
	_, err := gitCtx.Run(ctx, "fetch", s.Remote, ref)
	return err
}

func (s *Service) User(ctx context.Context, project, handle string) (host.User, errors.E) {
	u, _, err := s.Client.Users.Get(ctx, handle)
	if err != nil {
		return host.User{}, errors.Wrapf(err, "cannot look up GitHub user %q", handle)
	}
	return host.User{Handle: u.GetLogin(), Name: u.GetName(), Email: u.GetEmail()}, nil
}

func (s *Service) Commit(ctx context.Context, project string, id host.CommitID) (host.Commit, errors.E) {
	owner, repo, errE := splitProject(project)
	if errE != nil {
		return host.Commit{}, errE
	}
	c, _, err := s.Client.Repositories.GetCommit(ctx, owner, repo, string(id), nil)
	if err != nil {
		return host.Commit{}, errors.Wrapf(err, "cannot fetch commit %s", id)
	}
	return host.Commit{ID: host.CommitID(c.GetSHA())}, nil
}

func (s *Service) MergeRequest(ctx context.Context, project string, id int64) (host.MergeRequest, errors.E) {
	owner, repo, errE := splitProject(project)
	if errE != nil {
		return host.MergeRequest{}, errE
	}
	pr, _, err := s.Client.PullRequests.Get(ctx, owner, repo, int(id))
	if err != nil {
		return host.MergeRequest{}, errors.Wrapf(err, "cannot fetch pull request #%d", id)
	}
	return convertPR(project, pr), nil
}

func (s *Service) Repo(ctx context.Context, project string) (host.Repo, errors.E) {
	owner, repo, errE := splitProject(project)
	if errE != nil {
		return host.Repo{}, errE
	}
	r, _, err := s.Client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return host.Repo{}, errors.Wrapf(err, "cannot fetch repository %q", project)
	}
	out := host.Repo{Name: r.GetFullName(), URL: r.GetCloneURL()}
	if r.GetFork() && r.GetSource() != nil {
		out.ForkedFrom = &host.Repo{Name: r.GetSource().GetFullName()}
	}
	return out, nil
}

func (s *Service) GetMRComments(ctx context.Context, mr host.MergeRequest) ([]host.Comment, errors.E) {
	owner, repo, errE := splitProject(mr.TargetRepo.Name)
	if errE != nil {
		return nil, errE
	}
	var comments []host.Comment
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		issueComments, resp, err := s.Client.Issues.ListComments(ctx, owner, repo, int(mr.ID), opts)
		if err != nil {
			return nil, errors.Wrap(err, "cannot list pull request comments")
		}
		for _, c := range issueComments {
			comments = append(comments, host.Comment{
				Author:    host.User{Handle: c.GetUser().GetLogin()},
				Content:   c.GetBody(),
				CreatedAt: c.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

func (s *Service) PostMRComment(ctx context.Context, mr host.MergeRequest, content string) errors.E {
	owner, repo, errE := splitProject(mr.TargetRepo.Name)
	if errE != nil {
		return errE
	}
	_, _, err := s.Client.Issues.CreateComment(ctx, owner, repo, int(mr.ID), &github.IssueComment{
		Body: github.Ptr(content),
	})
	if err != nil {
		return errors.Wrap(err, "cannot post pull request comment")
	}
	return nil
}

func (s *Service) GetCommitStatuses(ctx context.Context, commit host.Commit) ([]host.PendingCommitStatus, errors.E) {
	owner, repo, errE := splitProject(commit.Repo.Name)
	if errE != nil {
		return nil, errE
	}
	statuses, _, err := s.Client.Repositories.ListStatuses(ctx, owner, repo, string(commit.ID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list commit statuses")
	}
	var out []host.PendingCommitStatus
	for _, st := range statuses {
		out = append(out, host.PendingCommitStatus{
			Commit:      commit,
			State:       convertState(st.GetState()),
			Name:        st.GetContext(),
			Description: st.GetDescription(),
			TargetURL:   st.GetTargetURL(),
		})
	}
	return out, nil
}

func (s *Service) PostCommitStatus(ctx context.Context, status host.PendingCommitStatus) errors.E {
	owner, repo, errE := splitProject(status.Commit.Repo.Name)
	if errE != nil {
		return errE
	}
	_, _, err := s.Client.Repositories.CreateStatus(ctx, owner, repo, string(status.Commit.ID), &github.RepoStatus{
		State:       github.Ptr(stateName(status.State)),
		Context:     github.Ptr(status.Name),
		Description: github.Ptr(status.Description),
		TargetURL:   github.Ptr(status.TargetURL),
	})
	if err != nil {
		return errors.Wrap(err, "cannot post commit status")
	}
	return nil
}

func (s *Service) PostReview(ctx context.Context, status host.PendingCommitStatus, mr host.MergeRequest, description string) errors.E {
	return host.DefaultPostReview(ctx, s, status, mr, description)
}

func (s *Service) GetMRAwards(ctx context.Context, mr host.MergeRequest) ([]host.Award, errors.E) {
	owner, repo, errE := splitProject(mr.TargetRepo.Name)
	if errE != nil {
		return nil, errE
	}
	reactions, _, err := s.Client.Reactions.ListIssueReactions(ctx, owner, repo, int(mr.ID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list pull request reactions")
	}
	var out []host.Award
	for _, r := range reactions {
		out = append(out, host.Award{Name: r.GetContent(), Author: host.User{Handle: r.GetUser().GetLogin()}})
	}
	return out, nil
}

func (s *Service) IssuesClosedByMR(ctx context.Context, mr host.MergeRequest) ([]host.Issue, errors.E) {
	// GitHub has no direct "closes" API, and this adapter does not parse
	// "Closes #N"/"Fixes #N" references from the PR body: it always
	// reports no issues.
	return nil, nil
}

func (s *Service) AddIssueLabels(ctx context.Context, issue host.Issue, labels []string) errors.E {
	owner, repo, errE := splitProject(issue.Project)
	if errE != nil {
		return errE
	}
	_, _, err := s.Client.Issues.AddLabelsToIssue(ctx, owner, repo, int(issue.Number), labels)
	if err != nil {
		return errors.Wrap(err, "cannot add issue labels")
	}
	return nil
}

func (s *Service) AsPipelineService() (host.PipelineService, bool) {
	return &pipelineService{s}, true
}

func convertPR(project string, pr *github.PullRequest) host.MergeRequest {
	out := host.MergeRequest{
		SourceBranch:   pr.GetHead().GetRef(),
		TargetBranch:   pr.GetBase().GetRef(),
		ID:             int64(pr.GetNumber()),
		URL:            pr.GetHTMLURL(),
		WorkInProgress: pr.GetDraft(),
		Description:    pr.GetBody(),
		TargetRepo:     &host.Repo{Name: project},
	}
	if pr.GetHead().GetRepo() != nil {
		out.SourceRepo = &host.Repo{Name: pr.GetHead().GetRepo().GetFullName()}
	}
	if pr.GetUser() != nil {
		out.Author = host.User{Handle: pr.GetUser().GetLogin()}
	}
	out.Commit = host.Commit{ID: host.CommitID(pr.GetHead().GetSHA())}
	return out
}

func convertState(status string) host.CommitStatusState {
	switch status {
	case "pending":
		return host.StatusPending
	case "success":
		return host.StatusSuccess
	case "error", "failure":
		return host.StatusFailed
	default:
		return host.StatusRunning
	}
}

func stateName(s host.CommitStatusState) string {
	switch s {
	case host.StatusPending:
		return "pending"
	case host.StatusRunning:
		return "pending"
	case host.StatusSuccess:
		return "success"
	default:
		return "failure"
	}
}
