package gitlabhost

import (
	"context"

	"github.com/xanzy/go-gitlab"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/host"
)

// pipelineService adapts GitLab pipelines/jobs to host.PipelineService
// (spec.md §4.4, §8.6).
type pipelineService struct {
	*Service
}

func (p *pipelineService) Pipeline(ctx context.Context, commit host.Commit) (host.Pipeline, errors.E) {
	pipelines, _, err := p.Client.Pipelines.ListProjectPipelines(commit.Repo.Name, &gitlab.ListProjectPipelinesOptions{
		SHA:         gitlab.Ptr(string(commit.ID)),
		ListOptions: gitlab.ListOptions{PerPage: 1},
	})
	if err != nil {
		return host.Pipeline{}, errors.Wrapf(err, "cannot find pipeline for commit %s", commit.ID)
	}
	if len(pipelines) == 0 {
		return host.Pipeline{}, errors.Errorf("no pipeline found for commit %s", commit.ID)
	}
	pipeline, _, err := p.Client.Pipelines.GetPipeline(commit.Repo.Name, pipelines[0].ID)
	if err != nil {
		return host.Pipeline{}, errors.Wrapf(err, "cannot fetch pipeline %d", pipelines[0].ID)
	}
	return host.Pipeline{Project: commit.Repo.Name, ID: int64(pipeline.ID), State: convertPipelineState(pipeline.Status)}, nil
}

func (p *pipelineService) Jobs(ctx context.Context, pipeline host.Pipeline) ([]host.PipelineJob, errors.E) {
	var out []host.PipelineJob
	opts := &gitlab.ListJobsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		jobs, resp, err := p.Client.Jobs.ListPipelineJobs(pipeline.Project, int(pipeline.ID), opts)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot list jobs of pipeline %d", pipeline.ID)
		}
		for _, j := range jobs {
			out = append(out, host.PipelineJob{Project: pipeline.Project, ID: int64(j.ID), Name: j.Name, Stage: j.Stage, State: convertPipelineState(j.Status)})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (p *pipelineService) TriggerPipeline(ctx context.Context, commit host.Commit, variables map[string]string) (host.Pipeline, errors.E) {
	var vars []*gitlab.PipelineVariableOptions
	for k, v := range variables {
		k, v := k, v
		vars = append(vars, &gitlab.PipelineVariableOptions{Key: &k, Value: &v})
	}
	pipeline, _, err := p.Client.Pipelines.CreatePipeline(commit.Repo.Name, &gitlab.CreatePipelineOptions{
		Ref:       gitlab.Ptr(string(commit.ID)),
		Variables: &vars,
	})
	if err != nil {
		return host.Pipeline{}, errors.Wrap(err, "cannot trigger pipeline")
	}
	return host.Pipeline{Project: commit.Repo.Name, ID: int64(pipeline.ID), State: convertPipelineState(pipeline.Status)}, nil
}

func (p *pipelineService) RetryJob(ctx context.Context, job host.PipelineJob) errors.E {
	_, _, err := p.Client.Jobs.RetryJob(job.Project, int(job.ID))
	if err != nil {
		return errors.Wrapf(err, "cannot retry job %d", job.ID)
	}
	return nil
}

func convertPipelineState(status string) host.PipelineState {
	switch status {
	case "created", "waiting_for_resource", "preparing", "pending", "manual":
		return host.PipelineManual
	case "running", "scheduled":
		return host.PipelineInProgress
	case "canceled", "skipped":
		return host.PipelineCanceled
	case "failed":
		return host.PipelineFailed
	case "success":
		return host.PipelineSuccess
	default:
		return host.PipelineInProgress
	}
}
