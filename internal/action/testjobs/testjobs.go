// Package testjobs implements the `test jobs` action (spec.md §6): it
// drops a JSON job file into a queue directory for an out-of-process
// runner to pick up, rather than driving CI through a hosting-service API.
// Grounded on ghostflow/src/actions/test/jobs.rs.
package testjobs

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/host"
)

const jobFileRandomSuffixLength = 12

var alphanumeric = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// TestJobs writes test job descriptions into a queue directory.
type TestJobs struct {
	Service host.Service
	Queue   string
	Project string
	Quiet   bool // suppress informational comments; errors are still reported by the caller
}

// New creates the queue directory (if needed) and returns a ready TestJobs.
func New(service host.Service, queue, project string) (*TestJobs, errors.E) {
	if err := os.MkdirAll(queue, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create the queue directory %s", queue)
	}
	return &TestJobs{Service: service, Queue: queue, Project: project}, nil
}

// TestUpdate queues a job for a branch update (no merge request involved).
func (t *TestJobs) TestUpdate(data any) errors.E {
	logrus.WithField("project", t.Project).Info("queuing an update test job")
	return t.queueJob(data)
}

// TestMR queues a job for a merge request and, unless Quiet, leaves an
// informational comment noting it.
func (t *TestJobs) TestMR(ctx context.Context, mr host.MergeRequest, data any) errors.E {
	logrus.WithField("url", mr.URL).Info("queuing a test job")

	if errE := t.queueJob(data); errE != nil {
		return errE
	}

	t.sendInfoMRComment(ctx, mr, "This topic has been queued for testing.")
	return nil
}

func (t *TestJobs) queueJob(data any) errors.E {
	name := time.Now().UTC().Format(time.RFC3339Nano) + "-" + randomAlphanumeric(jobFileRandomSuffixLength) + ".json"
	jobPath := filepath.Join(t.Queue, name)

	contents, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "failed to write a job to %s", jobPath)
	}
	if err := os.WriteFile(jobPath, contents, 0o644); err != nil {
		return errors.Wrapf(err, "failed to create a job file %s", jobPath)
	}
	return nil
}

func randomAlphanumeric(n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = alphanumeric[rand.Intn(len(alphanumeric))] //nolint:gosec // queue filename uniqueness, not a security token
	}
	return string(out)
}

func (t *TestJobs) sendMRComment(ctx context.Context, mr host.MergeRequest, content string) {
	if errE := t.Service.PostMRComment(ctx, mr, content); errE != nil {
		logrus.WithFields(logrus.Fields{"project": t.Project, "mr": mr.ID}).WithError(errE).Error("failed to post a comment to merge request")
	}
}

func (t *TestJobs) sendInfoMRComment(ctx context.Context, mr host.MergeRequest, content string) {
	if !t.Quiet {
		t.sendMRComment(ctx, mr, content)
	}
}
