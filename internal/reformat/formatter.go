// Package reformat implements the Reformatter (spec.md §4.3): per-commit
// formatter fan-out with history rewriting, empty-commit elision, and
// post-format tree-sanity checks. Grounded on
// ghostflow/src/actions/reformat.rs.
package reformat

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/tozd/go/errors"
)

// zombieTimeout is how long format_path waits for a killed child to exit
// before giving up and logging, per the original's ZOMBIE_TIMEOUT.
const zombieTimeout = time.Second

// Formatter is a single registered code formatter (spec.md §3).
type Formatter struct {
	Kind          string
	ExecutablePath string
	ConfigFiles   []string
	Timeout       time.Duration
}

// AttrValue is a parsed `format.<kind>` git attribute value for one path:
// either unset (skip), set with no value, or set with a value passed as
// an extra argument to the formatter.
type AttrValue struct {
	Set   bool
	Value string // empty unless the attribute carries a value
}

// FormatPath runs f against path (relative to workTree), honoring the
// attribute value and the formatter's timeout. On timeout the child is
// sent SIGKILL and format_path waits up to zombieTimeout for it to exit
// before giving up and logging — it does not block indefinitely.
func (f Formatter) FormatPath(ctx context.Context, workTree, path string, attr AttrValue) errors.E {
	if !attr.Set {
		return nil
	}

	args := []string{path}
	if attr.Value != "" {
		args = append(args, attr.Value)
	}

	cmd := exec.Command(f.ExecutablePath, args...)
	cmd.Dir = workTree
	cmd.Stdin = nil
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "cannot start formatter %q for %q", f.Kind, path)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := f.Timeout
	if timeout <= 0 {
		select {
		case err := <-done:
			return classifyExit(f.Kind, path, err, stderr.String())
		case <-ctx.Done():
			return f.killAndWait(cmd, done, f.Kind, path)
		}
	}

	select {
	case err := <-done:
		return classifyExit(f.Kind, path, err, stderr.String())
	case <-time.After(timeout):
		return f.killAndWait(cmd, done, f.Kind, path)
	case <-ctx.Done():
		return f.killAndWait(cmd, done, f.Kind, path)
	}
}

func (f Formatter) killAndWait(cmd *exec.Cmd, done chan error, kind, path string) errors.E {
	_ = cmd.Process.Kill()
	select {
	case <-done:
	case <-time.After(zombieTimeout):
		logrus.WithFields(logrus.Fields{
			"formatter": kind,
			"path":      path,
			"pid":       cmd.Process.Pid,
		}).Warn("formatter did not exit after SIGKILL within the zombie timeout")
	}
	return errors.Errorf("formatter %q timed out on %q", kind, path)
}

func classifyExit(kind, path string, err error, stderr string) errors.E {
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return errors.Errorf("formatter %q was killed by signal %s on %q", kind, status.Signal(), path)
		}
		return errors.Errorf("formatter %q exited %d on %q: %s", kind, exitErr.ExitCode(), path, stderr)
	}
	return errors.Wrapf(err, "formatter %q failed on %q", kind, path)
}
