package ghostflow

import (
	"context"
	"encoding/json"
	"regexp"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/action/testjobs"
	"github.com/ghostflow/ghostflow/internal/action/testpipelines"
	"github.com/ghostflow/ghostflow/internal/action/testrefs"
	"github.com/ghostflow/ghostflow/internal/host"
)

// TestCmd is the `test` command group (spec.md §6): pipelines, jobs, refs.
type TestCmd struct {
	Pipelines TestPipelinesCmd `cmd:"" help:"Start or restart a merge request's pipeline jobs."`
	Jobs      TestJobsCmd      `cmd:"" help:"Queue a test-job file for a merge request."`
	Refs      TestRefsCmd      `cmd:"" help:"Publish, remove, or clear test-topic refs."`
}

// TestPipelinesCmd is `test pipelines`.
type TestPipelinesCmd struct {
	MR           int64    `help:"Merge request id." required:""`
	Action       string   `help:"One of start-manual, restart-unsuccessful, restart-failed, restart-all." default:"start-manual"`
	Stage        string   `help:"Restrict to jobs in this pipeline stage."`
	JobsMatching []string `help:"Restrict to job names matching any of these regular expressions." sep:","`
	User         string   `help:"Hosting-service user name; not applied, jobs are always triggered as the service's own identity."`
}

func parseTestPipelinesAction(s string) (testpipelines.Action, errors.E) {
	switch s {
	case "start-manual":
		return testpipelines.StartManual, nil
	case "restart-unsuccessful":
		return testpipelines.RestartUnsuccessful, nil
	case "restart-failed":
		return testpipelines.RestartFailed, nil
	case "restart-all":
		return testpipelines.RestartAll, nil
	default:
		return 0, errors.Errorf("unknown test pipelines action %q", s)
	}
}

func (c *TestPipelinesCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	pipelineSvc, ok := svc.AsPipelineService()
	if !ok {
		return errors.New("hosting service does not support pipelines")
	}
	mr, errE := svc.MergeRequest(ctx, g.Project, c.MR)
	if errE != nil {
		return errE
	}
	action, errE := parseTestPipelinesAction(c.Action)
	if errE != nil {
		return errE
	}
	matching := make([]*regexp.Regexp, 0, len(c.JobsMatching))
	for _, pattern := range c.JobsMatching {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return errors.Wrapf(err, "invalid --jobs-matching pattern %q", pattern)
		}
		matching = append(matching, re)
	}
	options := testpipelines.Options{Action: action, Stage: c.Stage, JobsMatching: matching, User: c.User}
	return testpipelines.New(pipelineSvc).TestMR(ctx, mr, options)
}

// TestJobsCmd is `test jobs`.
type TestJobsCmd struct {
	MR    int64  `help:"Merge request id."`
	Queue string `help:"Directory the test-job JSON files are written to." required:""`
	Data  string `help:"JSON object written as the job's data payload." default:"{}"`
	Quiet bool   `help:"Suppress the MR info comment."`
}

func (c *TestJobsCmd) Run(g *Globals) errors.E {
	var data any
	if err := json.Unmarshal([]byte(c.Data), &data); err != nil {
		return errors.Wrapf(err, "invalid --data JSON %q", c.Data)
	}

	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	tj, errE := testjobs.New(svc, c.Queue, g.Project)
	if errE != nil {
		return errE
	}
	tj.Quiet = c.Quiet

	if c.MR == 0 {
		return tj.TestUpdate(data)
	}
	ctx := context.Background()
	mr, errE := svc.MergeRequest(ctx, g.Project, c.MR)
	if errE != nil {
		return errE
	}
	return tj.TestMR(ctx, mr, data)
}

// TestRefsCmd is `test refs`.
type TestRefsCmd struct {
	Test   *TestRefsTestCmd   `cmd:"" help:"Publish a test-topic ref for a merge request."`
	Untest *TestRefsUntestCmd `cmd:"" help:"Remove a merge request's test-topic ref."`
	Clear  *TestRefsClearCmd  `cmd:"" help:"Remove every test-topic ref, cleaning up stale ones."`
}

type testRefsShared struct {
	Namespace string `help:"Ref namespace test-topic refs are published under." default:"test-topics"`
	Quiet     bool   `help:"Suppress MR comments and commit statuses."`
}

func (s testRefsShared) buildAction(g *Globals, svc host.Service) *testrefs.TestRefs {
	tr := testrefs.New(g.buildGit(), svc, g.Remote, g.Project)
	tr.Namespace = s.Namespace
	tr.Quiet = s.Quiet
	return tr
}

// TestRefsTestCmd is `test refs test`.
type TestRefsTestCmd struct {
	testRefsShared
	MR int64 `help:"Merge request id." required:""`
}

func (c *TestRefsTestCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	mr, errE := svc.MergeRequest(ctx, g.Project, c.MR)
	if errE != nil {
		return errE
	}
	return c.buildAction(g, svc).TestMR(ctx, mr)
}

// TestRefsUntestCmd is `test refs untest`.
type TestRefsUntestCmd struct {
	testRefsShared
	MR int64 `help:"Merge request id." required:""`
}

func (c *TestRefsUntestCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	mr, errE := svc.MergeRequest(ctx, g.Project, c.MR)
	if errE != nil {
		return errE
	}
	return c.buildAction(g, svc).UntestMR(ctx, mr)
}

// TestRefsClearCmd is `test refs clear`.
type TestRefsClearCmd struct {
	testRefsShared
}

func (c *TestRefsClearCmd) Run(g *Globals) errors.E {
	ctx := context.Background()
	svc, errE := g.buildService()
	if errE != nil {
		return errE
	}
	return c.buildAction(g, svc).ClearAllMRs(ctx)
}
