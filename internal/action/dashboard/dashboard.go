// Package dashboard implements the `dashboard` action (spec.md §6): it
// posts a commit status linking to an external dashboard that collates CI
// results. The status is always posted in the success state; this action
// makes no attempt to synchronize with the dashboard's own state. Grounded
// on ghostflow/src/actions/dashboard.rs, with the Rust TemplateString
// calls replaced by internal/template.
package dashboard

import (
	"context"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/host"
	"github.com/ghostflow/ghostflow/internal/template"
)

// Action posts a fixed-success commit status carrying a templated name,
// URL, and description.
type Action struct {
	Service     host.Service
	StatusName  template.String
	URL         template.String
	Description template.String
}

// New parses the three templates and returns a ready Action.
func New(service host.Service, statusName, url, description string) *Action {
	return &Action{
		Service:     service,
		StatusName:  template.New(statusName),
		URL:         template.New(url),
		Description: template.New(description),
	}
}

const (
	refsHeadsPrefix = "refs/heads/"
	refsTagsPrefix  = "refs/tags/"
)

// PostForCommit posts a dashboard status for a bare commit. Available
// replacements: commit, refname (if set), branch_name (if refname is under
// refs/heads/), tag_name (if refname is under refs/tags/), pipeline_id (if
// set).
func (a *Action) PostForCommit(ctx context.Context, commit host.Commit) errors.E {
	data := map[string]string{"commit": string(commit.ID)}
	if commit.Refname != "" {
		data["refname"] = commit.Refname
		if name, ok := strings.CutPrefix(commit.Refname, refsHeadsPrefix); ok {
			data["branch_name"] = name
		}
		if name, ok := strings.CutPrefix(commit.Refname, refsTagsPrefix); ok {
			data["tag_name"] = name
		}
	}
	if commit.LastPipeline != nil {
		data["pipeline_id"] = strconv.FormatInt(*commit.LastPipeline, 10)
	}
	return a.post(ctx, commit.CreateCommitStatus(host.StatusSuccess, a.StatusName.Replace(data), a.Description.Replace(data)), a.URL.Replace(data))
}

// PostForMR posts a dashboard status for a merge request's head commit.
// Available replacements: source_branch, target_branch, commit, mr_id,
// pipeline_id (if set).
func (a *Action) PostForMR(ctx context.Context, mr host.MergeRequest) errors.E {
	return a.postForMRCommit(ctx, mr, mr.Commit)
}

// PostForMRAltered posts a dashboard status to an MR, but computes its
// template replacements from a different, related commit (e.g. the
// backport commit rather than the MR's own head).
func (a *Action) PostForMRAltered(ctx context.Context, mr host.MergeRequest, commit host.Commit) errors.E {
	return a.postForMRCommit(ctx, mr, commit)
}

func (a *Action) postForMRCommit(ctx context.Context, mr host.MergeRequest, commit host.Commit) errors.E {
	data := map[string]string{
		"source_branch": mr.SourceBranch,
		"target_branch": mr.TargetBranch,
		"commit":        string(commit.ID),
		"mr_id":         strconv.FormatInt(mr.ID, 10),
	}
	if commit.LastPipeline != nil {
		data["pipeline_id"] = strconv.FormatInt(*commit.LastPipeline, 10)
	}
	status := mr.CreateCommitStatus(host.StatusSuccess, a.StatusName.Replace(data), a.Description.Replace(data))
	status.Commit = commit
	return a.post(ctx, status, a.URL.Replace(data))
}

func (a *Action) post(ctx context.Context, status host.PendingCommitStatus, url string) errors.E {
	status.TargetURL = url
	return a.Service.PostCommitStatus(ctx, status)
}
