package merge

import (
	"context"
	"fmt"
	"os"

	"gitlab.com/tozd/go/errors"
	"github.com/sirupsen/logrus"

	"github.com/ghostflow/ghostflow/internal/host"
)

// pushRefs pushes every collected ref update to origin in a single atomic
// multi-ref push (spec.md §4.1 "Into-branch propagation" step 5).
func (m *Merger) pushRefs(ctx context.Context, mr host.MergeRequest, refs map[string]host.CommitID, quiet bool) errors.E {
	refspecs := make(map[string]string, len(refs))
	for branch, commit := range refs {
		local := "refs/heads/" + branch + "-ghostflow-merge"
		if err := m.Git.UpdateRef(ctx, local, commit); err != nil {
			return err
		}
		refspecs[local] = "refs/heads/" + branch
	}

	if err := m.Git.PushAtomic(ctx, m.Remote, refspecs); err != nil {
		if !quiet {
			_ = m.postComment(ctx, mr, "The merge could not be pushed.")
		}
		return err
	}

	if !quiet {
		_ = m.postComment(ctx, mr, fmt.Sprintf("Merged into %d branch(es).", len(refs)))
	}
	return nil
}

func newTempWorkDir() (string, errors.E) {
	dir, err := os.MkdirTemp("", "ghostflow-merge-")
	if err != nil {
		return "", errors.Wrap(err, "cannot create merge work area")
	}
	return dir, nil
}

func cleanupWorkDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logrus.WithField("dir", dir).WithError(err).Warn("failed to clean up merge work area")
	}
}

func logCommentFailure(mr host.MergeRequest, err error) {
	logrus.WithFields(logrus.Fields{
		"merge_request": mr.Reference,
	}).WithError(err).Warn("failed to post merge request comment")
}
