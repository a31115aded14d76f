package githubhost

import (
	"context"

	"github.com/google/go-github/v74/github"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/host"
)

// pipelineService adapts GitHub Actions workflow runs/jobs to
// host.PipelineService (spec.md §4.4, §8.6). GitHub has no single
// "pipeline" concept; a workflow run is the closest analogue, and the
// first run matching commit's SHA is treated as its pipeline.
type pipelineService struct {
	*Service
}

func (p *pipelineService) Pipeline(ctx context.Context, commit host.Commit) (host.Pipeline, errors.E) {
	owner, repo, errE := splitProject(commit.Repo.Name)
	if errE != nil {
		return host.Pipeline{}, errE
	}
	runs, _, err := p.Client.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, &github.ListWorkflowRunsOptions{
		HeadSHA:     string(commit.ID),
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return host.Pipeline{}, errors.Wrapf(err, "cannot find workflow run for commit %s", commit.ID)
	}
	if len(runs.WorkflowRuns) == 0 {
		return host.Pipeline{}, errors.Errorf("no workflow run found for commit %s", commit.ID)
	}
	run := runs.WorkflowRuns[0]
	return host.Pipeline{Project: commit.Repo.Name, ID: run.GetID(), State: convertRunState(run.GetStatus(), run.GetConclusion())}, nil
}

func (p *pipelineService) Jobs(ctx context.Context, pipeline host.Pipeline) ([]host.PipelineJob, errors.E) {
	owner, repo, errE := splitProject(pipeline.Project)
	if errE != nil {
		return nil, errE
	}
	var out []host.PipelineJob
	opts := &github.ListWorkflowJobsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		jobs, resp, err := p.Client.Actions.ListWorkflowJobs(ctx, owner, repo, pipeline.ID, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot list jobs of workflow run %d", pipeline.ID)
		}
		for _, j := range jobs.Jobs {
			out = append(out, host.PipelineJob{
				Project: pipeline.Project,
				ID:      j.GetID(),
				Name:    j.GetName(),
				State:   convertRunState(j.GetStatus(), j.GetConclusion()),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (p *pipelineService) TriggerPipeline(ctx context.Context, commit host.Commit, variables map[string]string) (host.Pipeline, errors.E) {
	return host.Pipeline{}, errors.New("GitHub Actions workflow_dispatch requires a workflow id, which TriggerPipeline's (Commit, variables) signature does not carry; use a repository-specific action instead")
}

func (p *pipelineService) RetryJob(ctx context.Context, job host.PipelineJob) errors.E {
	owner, repo, errE := splitProject(job.Project)
	if errE != nil {
		return errE
	}
	_, err := p.Client.Actions.RerunJobByID(ctx, owner, repo, job.ID)
	if err != nil {
		return errors.Wrapf(err, "cannot rerun job %d", job.ID)
	}
	return nil
}

func convertRunState(status, conclusion string) host.PipelineState {
	switch status {
	case "queued", "waiting", "pending", "requested":
		return host.PipelineManual
	case "in_progress":
		return host.PipelineInProgress
	case "completed":
		switch conclusion {
		case "success":
			return host.PipelineSuccess
		case "cancelled", "skipped", "neutral":
			return host.PipelineCanceled
		default:
			return host.PipelineFailed
		}
	default:
		return host.PipelineInProgress
	}
}
