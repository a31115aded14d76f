// Package gitlabhost implements the host.Service contract (spec.md §4.4)
// against the GitLab API, using xanzy/go-gitlab's typed per-resource
// clients the way tozd-gitlab-config calls them throughout (e.g.
// client.Projects.GetProject, client.Projects.UploadAvatar).
package gitlabhost

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xanzy/go-gitlab"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

// Service adapts a *gitlab.Client to host.Service.
type Service struct {
	Client *gitlab.Client
	Remote string // the git remote URL to fetch refs through
}

// New builds a Service authenticating with token against baseURL (empty
// for gitlab.com).
func New(token, baseURL, remote string) (*Service, errors.E) {
	opts := []gitlab.ClientOptionFunc{}
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create GitLab client")
	}
	return &Service{Client: client, Remote: remote}, nil
}

func (s *Service) ServiceUser(ctx context.Context) (host.User, errors.E) {
	user, _, err := s.Client.Users.CurrentUser()
	if err != nil {
		return host.User{}, errors.Wrap(err, "cannot fetch current GitLab user")
	}
	return host.User{Handle: user.Username, Name: user.Name, Email: user.Email}, nil
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
	ref := fmt.Sprintf("refs/merge-requests/%d/head", mr.ID)
	_, err := gitCtx.Run(ctx, "fetch", s.Remote, ref)
	return err
}

func (s *Service) User(ctx context.Context, project, handle string) (host.User, errors.E) {
	users, _, err := s.Client.Users.ListUsers(&gitlab.ListUsersOptions{Username: gitlab.Ptr(handle)})
	if err != nil {
		return host.User{}, errors.Wrapf(err, "cannot look up GitLab user %q", handle)
	}
	if len(users) == 0 {
		return host.User{}, errors.Errorf("no such GitLab user %q", handle)
	}
	u := users[0]
	return host.User{Handle: u.Username, Name: u.Name, Email: u.Email}, nil
}

func (s *Service) Commit(ctx context.Context, project string, id host.CommitID) (host.Commit, errors.E) {
	c, _, err := s.Client.Commits.GetCommit(project, string(id), nil)
	if err != nil {
		return host.Commit{}, errors.Wrapf(err, "cannot fetch commit %s", id)
	}
	return host.Commit{ID: host.CommitID(c.ID)}, nil
}

func (s *Service) MergeRequest(ctx context.Context, project string, id int64) (host.MergeRequest, errors.E) {
	mr, _, err := s.Client.MergeRequests.GetMergeRequest(project, int(id), nil)
	if err != nil {
		return host.MergeRequest{}, errors.Wrapf(err, "cannot fetch merge request !%d", id)
	}
	out := convertMR(mr)
	out.TargetRepo = &host.Repo{Name: project}
	if mr.SourceProjectID != 0 {
		out.SourceRepo = &host.Repo{Name: project}
	}
	return out, nil
}

func (s *Service) Repo(ctx context.Context, project string) (host.Repo, errors.E) {
	p, _, err := s.Client.Projects.GetProject(project, nil)
	if err != nil {
		return host.Repo{}, errors.Wrapf(err, "cannot fetch project %q", project)
	}
	repo := host.Repo{Name: p.PathWithNamespace, URL: p.HTTPURLToRepo}
	if p.ForkedFromProject != nil {
		repo.ForkedFrom = &host.Repo{Name: p.ForkedFromProject.PathWithNamespace}
	}
	return repo, nil
}

func (s *Service) GetMRComments(ctx context.Context, mr host.MergeRequest) ([]host.Comment, errors.E) {
	var comments []host.Comment
	opts := &gitlab.ListMergeRequestNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
		OrderBy:     gitlab.Ptr("created_at"),
		Sort:        gitlab.Ptr("asc"),
	}
	for {
		notes, resp, err := s.Client.Notes.ListMergeRequestNotes(mr.TargetRepo.Name, int(mr.ID), opts)
		if err != nil {
			return nil, errors.Wrap(err, "cannot list merge request notes")
		}
		for _, n := range notes {
			comments = append(comments, host.Comment{
				Author:    host.User{Handle: n.Author.Username, Name: n.Author.Name},
				Content:   n.Body,
				CreatedAt: *n.CreatedAt,
				IsSystem:  n.System,
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
	_, _, err := s.Client.Notes.CreateMergeRequestNote(mr.TargetRepo.Name, int(mr.ID), &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.Ptr(content),
	})
	if err != nil {
		return errors.Wrap(err, "cannot post merge request comment")
	}
	return nil
}

func (s *Service) GetCommitStatuses(ctx context.Context, commit host.Commit) ([]host.PendingCommitStatus, errors.E) {
	statuses, _, err := s.Client.Commits.GetCommitStatuses(commit.Repo.Name, string(commit.ID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list commit statuses")
	}
	var out []host.PendingCommitStatus
	for _, st := range statuses {
		out = append(out, host.PendingCommitStatus{
			Commit:      commit,
			State:       convertState(st.Status),
			Name:        st.Name,
			Description: st.Description,
			TargetURL:   st.TargetURL,
		})
	}
	return out, nil
}

func (s *Service) PostCommitStatus(ctx context.Context, status host.PendingCommitStatus) errors.E {
	_, _, err := s.Client.Commits.SetCommitStatus(status.Commit.Repo.Name, string(status.Commit.ID), &gitlab.SetCommitStatusOptions{
		State:       gitlab.Ptr(gitlab.BuildStateValue(stateName(status.State))),
		Name:        gitlab.Ptr(status.Name),
		Description: gitlab.Ptr(status.Description),
		TargetURL:   gitlab.Ptr(status.TargetURL),
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
	awards, _, err := s.Client.AwardEmoji.ListMergeRequestAwardEmoji(mr.TargetRepo.Name, int(mr.ID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list merge request awards")
	}
	var out []host.Award
	for _, a := range awards {
		out = append(out, host.Award{Name: a.Name, Author: host.User{Handle: a.User.Username, Name: a.User.Name}})
	}
	return out, nil
}

func (s *Service) IssuesClosedByMR(ctx context.Context, mr host.MergeRequest) ([]host.Issue, errors.E) {
	issues, _, err := s.Client.MergeRequests.GetIssuesClosedOnMerge(mr.TargetRepo.Name, int(mr.ID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list issues closed by merge request")
	}
	var out []host.Issue
	for _, i := range issues {
		out = append(out, host.Issue{Project: strconv.Itoa(i.ProjectID), Number: int64(i.IID)})
	}
	return out, nil
}

func (s *Service) AddIssueLabels(ctx context.Context, issue host.Issue, labels []string) errors.E {
	labelOptions := gitlab.LabelOptions(labels)
	_, _, err := s.Client.Issues.UpdateIssue(issue.Project, int(issue.Number), &gitlab.UpdateIssueOptions{
		AddLabels: &labelOptions,
	})
	if err != nil {
		return errors.Wrap(err, "cannot add issue labels")
	}
	return nil
}

func (s *Service) AsPipelineService() (host.PipelineService, bool) {
	return &pipelineService{s}, true
}

func convertMR(mr *gitlab.MergeRequest) host.MergeRequest {
	out := host.MergeRequest{
		SourceBranch:       mr.SourceBranch,
		TargetBranch:       mr.TargetBranch,
		ID:                 int64(mr.IID),
		URL:                mr.WebURL,
		WorkInProgress:     mr.WorkInProgress,
		Description:        mr.Description,
		Reference:          mr.References.Full,
		RemoveSourceBranch: mr.ForceRemoveSourceBranch,
	}
	if mr.Author != nil {
		out.Author = host.User{Handle: mr.Author.Username, Name: mr.Author.Name}
	}
	out.Commit = host.Commit{ID: host.CommitID(mr.SHA)}
	return out
}

func convertState(status string) host.CommitStatusState {
	switch status {
	case "pending", "created":
		return host.StatusPending
	case "running":
		return host.StatusRunning
	case "success":
		return host.StatusSuccess
	default:
		return host.StatusFailed
	}
}

func stateName(s host.CommitStatusState) string {
	switch s {
	case host.StatusPending:
		return "pending"
	case host.StatusRunning:
		return "running"
	case host.StatusSuccess:
		return "success"
	default:
		return "failed"
	}
}
