// Package testrefs implements the `test refs` action (spec.md §6): it
// pushes a merge request's head commit into refs/<namespace>/<mr-id> for
// external testing machines to pick up, and tears the ref back down once
// testing is done. Grounded on ghostflow/src/actions/test/refs.rs.
package testrefs

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

const statusName = "ghostflow-test"

// TestRefs manages per-merge-request test refs.
type TestRefs struct {
	Git       *gitdriver.Context
	Service   host.Service
	Remote    string
	Project   string
	Namespace string // default "test-topics"
	Quiet     bool   // suppress informational comments; errors are still reported by the caller
}

// New returns a TestRefs with the default "test-topics" namespace.
func New(git *gitdriver.Context, service host.Service, remote, project string) *TestRefs {
	return &TestRefs{Git: git, Service: service, Remote: remote, Project: project, Namespace: "test-topics"}
}

func (t *TestRefs) namespace() string {
	if t.Namespace == "" {
		return "test-topics"
	}
	return t.Namespace
}

func (t *TestRefs) refname(mr host.MergeRequest) string {
	return "refs/" + t.namespace() + "/" + strconv.FormatInt(mr.ID, 10)
}

// TestMR fetches mr's head commit, force-updates its test ref to point at
// it, and pushes the ref to Remote.
func (t *TestRefs) TestMR(ctx context.Context, mr host.MergeRequest) errors.E {
	logrus.WithField("url", mr.URL).Info("pushing a test ref")

	if errE := t.Service.FetchMR(ctx, t.Git, mr); errE != nil {
		return errE
	}

	refname := t.refname(mr)

	if _, err := t.Git.Run(ctx, "update-ref", refname, string(mr.Commit.ID)); err != nil {
		return errors.Wrapf(err, "failed to update test ref `%s`", refname)
	}

	if _, err := t.Git.Run(ctx, "push", t.Remote, "--atomic", "--porcelain", refname+":"+refname); err != nil {
		return errors.Wrapf(err, "failed to push test ref `%s`", refname)
	}

	t.sendInfoMRComment(ctx, mr, "This topic has been pushed for testing.")
	t.sendMRCommitStatus(ctx, mr, host.StatusSuccess, "pushed for testing")

	return nil
}

// UntestMR removes mr from the testing set, deleting both the local and
// remote test refs if present.
func (t *TestRefs) UntestMR(ctx context.Context, mr host.MergeRequest) errors.E {
	logrus.WithField("url", mr.URL).Info("deleting the test ref")

	refname := t.refname(mr)

	exists, err := t.refExists(ctx, refname)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	if errE := t.deleteRef(ctx, refname); errE != nil {
		return errE
	}

	if _, err := t.Git.Run(ctx, "push", t.Remote, "--atomic", "--porcelain", ":"+refname); err != nil {
		return errors.Wrapf(err, "failed to delete remote test ref `%s`", refname)
	}

	t.sendMRCommitStatus(ctx, mr, host.StatusSuccess, "removed from testing")

	return nil
}

// ClearAllMRs deletes every test ref under Namespace, untesting the
// merge request each one names. A ref whose name does not parse as a
// merge request id, or that names a merge request the hosting service can
// no longer resolve, is deleted directly instead.
func (t *TestRefs) ClearAllMRs(ctx context.Context) errors.E {
	logrus.WithField("project", t.Project).Info("clearing all test refs")

	out, err := t.Git.Run(ctx, "for-each-ref", "--format=%(refname:strip=2)", "refs/"+t.namespace()+"/")
	if err != nil {
		return errors.Wrapf(err, "failed to list test refs under %s", t.namespace())
	}

	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		id, parseErr := strconv.ParseInt(line, 10, 64)
		if parseErr != nil {
			logrus.WithField("topic", line).WithError(parseErr).Error("failed to parse topic id; deleting the ref")
			t.lenientDeleteRef(ctx, "refs/"+t.namespace()+"/"+line)
			continue
		}

		mr, errE := t.Service.MergeRequest(ctx, t.Project, id)
		if errE != nil {
			logrus.WithField("topic", id).WithError(errE).Error("ref is not a valid merge request; deleting the ref")
			t.lenientDeleteRef(ctx, "refs/"+t.namespace()+"/"+line)
			continue
		}

		if errE := t.UntestMR(ctx, mr); errE != nil {
			return errE
		}
	}

	return nil
}

func (t *TestRefs) refExists(ctx context.Context, refname string) (bool, errors.E) {
	cmd := exec.CommandContext(ctx, "git", "show-ref", "--quiet", "--verify", refname)
	cmd.Env = append(os.Environ(), t.Git.Env...)
	cmd.Env = append(cmd.Env, "GIT_DIR="+t.Git.GitDir)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, errors.Wrapf(err, "cannot check existence of test ref `%s`", refname)
}

func (t *TestRefs) deleteRef(ctx context.Context, refname string) errors.E {
	logrus.WithField("ref", refname).Info("deleting test ref")
	if _, err := t.Git.Run(ctx, "update-ref", "-d", refname); err != nil {
		return errors.Wrapf(err, "failed to delete local test ref `%s`", refname)
	}
	return nil
}

func (t *TestRefs) lenientDeleteRef(ctx context.Context, refname string) {
	if errE := t.deleteRef(ctx, refname); errE != nil {
		logrus.WithFields(logrus.Fields{"ref": refname, "project": t.Project}).WithError(errE).Error("failed to delete test ref")
	}
}

func (t *TestRefs) sendMRCommitStatus(ctx context.Context, mr host.MergeRequest, state host.CommitStatusState, desc string) {
	status := mr.CreateCommitStatus(state, statusName, desc)
	if errE := t.Service.PostCommitStatus(ctx, status); errE != nil {
		logrus.WithFields(logrus.Fields{"mr": mr.ID, "commit": mr.Commit.ID, "desc": desc}).WithError(errE).Warn("failed to post a commit status")
	}
}

func (t *TestRefs) sendMRComment(ctx context.Context, mr host.MergeRequest, content string) {
	if errE := t.Service.PostMRComment(ctx, mr, content); errE != nil {
		logrus.WithFields(logrus.Fields{"project": t.Project, "mr": mr.ID}).WithError(errE).Error("failed to post a comment to merge request")
	}
}

func (t *TestRefs) sendInfoMRComment(ctx context.Context, mr host.MergeRequest, content string) {
	if !t.Quiet {
		t.sendMRComment(ctx, mr, content)
	}
}
