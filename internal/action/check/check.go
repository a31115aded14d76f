// Package check implements the `check` action (spec.md §4.3 neighbor,
// §5, §6): running a project's configured content checks against either a
// single commit (as part of a topic range) or in parallel across a
// rev-list, and reporting the aggregate result back to the hosting
// service: a plain commit status when there is nothing to say, and a review
// carrying the result description whenever the result has any errors,
// warnings or alerts (whether or not it passes). Grounded
// on ghostflow/src/actions/check.rs, with `git_checks_core`'s pluggable
// check registry replaced by a small first-writer-wins Registry mirroring
// internal/reformat's.
package check

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ghostflow/ghostflow/internal/config"
	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

// Result is the outcome of running a single check.
type Result struct {
	Errors   []string
	Warnings []string
	Alerts   []string
	// Temporary marks the result as possibly spurious (e.g. a check that
	// depends on external state briefly unavailable); reported to the
	// author as a hint to retry rather than rewrite.
	Temporary bool
}

// Merge folds other into r in place.
func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Alerts = append(r.Alerts, other.Alerts...)
	r.Temporary = r.Temporary || other.Temporary
}

// Pass reports whether the result has no errors.
func (r Result) Pass() bool {
	return len(r.Errors) == 0
}

// Checker validates a single commit against one configured check kind.
type Checker interface {
	Run(ctx context.Context, git *gitdriver.Context, reason string, base, commit host.CommitID, author host.Identity, cfg config.CheckConfig) (Result, errors.E)
}

// Registry is the process-wide, first-writer-wins map of check kind to
// Checker, built once at startup (spec.md §5, §9).
type Registry struct {
	checkers map[string]Checker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{checkers: map[string]Checker{}}
}

// Register adds c under kind. A duplicate registration is logged and
// ignored; the first entry wins.
func (r *Registry) Register(kind string, c Checker) {
	if _, exists := r.checkers[kind]; exists {
		logrus.WithField("kind", kind).Warn("duplicate check registration ignored")
		return
	}
	r.checkers[kind] = c
}

func (r *Registry) get(kind string) (Checker, bool) {
	c, ok := r.checkers[kind]
	return c, ok
}

// runTopic runs every configured check against a single commit and folds
// their results together. Unknown check kinds are reported as an error
// rather than silently skipped, since a misconfigured check is exactly
// the kind of thing content checks exist to catch.
func (r *Registry) runTopic(ctx context.Context, git *gitdriver.Context, reason string, base, commit host.CommitID, author host.Identity, checks []config.CheckConfig) (Result, errors.E) {
	var result Result
	for _, cfg := range checks {
		checker, ok := r.get(cfg.Kind)
		if !ok {
			result.Errors = append(result.Errors, "unknown check kind: "+cfg.Kind)
			continue
		}
		out, err := checker.Run(ctx, git, reason, base, commit, author, cfg)
		if err != nil {
			return Result{}, errors.Wrapf(err, "check %q failed on %s", cfg.Kind, commit)
		}
		result.Merge(out)
	}
	return result, nil
}

// PostWhen controls when the check action contacts the hosting service.
type PostWhen int

const (
	// Always posts on every run, success or failure.
	Always PostWhen = iota
	// Failure only posts when the aggregate status is not success.
	Failure
)

func (p PostWhen) shouldPost(state host.CommitStatusState) bool {
	switch p {
	case Always:
		return true
	case Failure:
		return state == host.StatusFailed
	default:
		return false
	}
}

// Status is the outcome of checking a merge request.
type Status int

const (
	Pass Status = iota
	Fail
)

// Action runs a project's configured checks against merge request
// commits.
type Action struct {
	Git      *gitdriver.Context
	Service  host.Service
	Registry *Registry
	Checks   []config.CheckConfig
	Admins   []string
	PostWhen PostWhen
	BaseName string // default "ghostflow"
}

// New returns an Action using the default "ghostflow" status base name and
// PostWhen of Always.
func New(git *gitdriver.Context, service host.Service, registry *Registry, checks []config.CheckConfig, admins []string) *Action {
	return &Action{Git: git, Service: service, Registry: registry, Checks: checks, Admins: admins, BaseName: "ghostflow"}
}

func (a *Action) baseName() string {
	if a.BaseName == "" {
		return "ghostflow"
	}
	return a.BaseName
}

// StatusName is the status-check name the action uses for branch.
func (a *Action) StatusName(branch string) string {
	return a.baseName() + "-check-" + branch
}

func statusDescription(branch string, commit host.CommitID) string {
	return "overall branch status for the content checks against " + branch + "\n\nBranch-at: " + string(commit)
}

// ErrUnrelatedCommit is returned when commit is neither on mr's range nor
// already merged into base.
const ErrUnrelatedCommit = "ghostflow/action/check: commit unrelated to the merge request"

// CheckMR checks mr's head commit against base.
func (a *Action) CheckMR(ctx context.Context, reason string, base host.CommitID, mr host.MergeRequest) (Status, errors.E) {
	return a.CheckMRWith(ctx, reason, base, mr, mr.Commit.ID)
}

// CheckMRWith is like CheckMR but checks a specific commit id, allowing a
// merge request to be checked against a backport branch using only the
// commits that actually belong there.
func (a *Action) CheckMRWith(ctx context.Context, reason string, base host.CommitID, mr host.MergeRequest, commitID host.CommitID) (Status, errors.E) {
	logrus.WithField("url", mr.URL).Info("checking merge request")

	onTarget, err := a.Git.IsAncestor(ctx, commitID, base)
	if err != nil {
		return 0, err
	}
	if !onTarget {
		bases, err := a.Git.MergeBase(ctx, base, commitID)
		if err != nil {
			return 0, err
		}
		if len(bases) == 0 {
			return 0, errors.New(ErrUnrelatedCommit)
		}
	}
	isMerged := onTarget

	branchName := string(base)
	name := a.StatusName(branchName)
	description := statusDescription(branchName, commitID)

	if a.PostWhen.shouldPost(host.StatusPending) {
		pending := mr.CreateCommitStatus(host.StatusPending, name, description)
		if errE := a.Service.PostCommitStatus(ctx, pending); errE != nil {
			logrus.WithField("url", mr.URL).WithError(errE).Warn("failed to post pending commit status")
		}
	}

	result, errE := a.Registry.runTopic(ctx, a.Git, reason, base, commitID, mr.Author.Identity(), a.Checks)
	if errE != nil {
		return 0, errE
	}

	if mr.WorkInProgress {
		result.Warnings = append(result.Warnings, "the merge request is marked as a work-in-progress.")
	}
	if isMerged {
		result.Errors = append(result.Errors, "the merge request is already merged into "+branchName+".")
	}

	state := host.StatusFailed
	if result.Pass() {
		state = host.StatusSuccess
	}
	status := mr.CreateCommitStatus(state, name, description)

	return a.reportToMR(ctx, mr, status, result)
}

func (a *Action) reportToMR(ctx context.Context, mr host.MergeRequest, status host.PendingCommitStatus, result Result) (Status, errors.E) {
	if len(result.Errors) == 0 && len(result.Warnings) == 0 && len(result.Alerts) == 0 {
		if a.PostWhen.shouldPost(status.State) {
			if errE := a.Service.PostCommitStatus(ctx, status); errE != nil {
				return 0, errE
			}
		}
		return Pass, nil
	}

	pass := result.Pass()

	if a.PostWhen.shouldPost(status.State) {
		comment := a.checkResultComment(result, true)
		if errE := a.Service.PostReview(ctx, status, mr, comment); errE != nil {
			return 0, errE
		}
	}

	if pass {
		return Pass, nil
	}
	return Fail, nil
}

func (a *Action) checkResultComment(result Result, withAssist bool) string {
	var b strings.Builder

	pushResults := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(label)
		b.WriteString(":\n\n")
		for _, item := range items {
			b.WriteString("  - ")
			b.WriteString(item)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	pushResults("Errors", result.Errors)
	pushResults("Warnings", result.Warnings)
	pushResults("Alerts", result.Alerts)

	if withAssist {
		if len(result.Warnings) > 0 {
			b.WriteString("The warnings do not need to be fixed, but it is recommended to do so.\n\n")
		}
		if len(result.Errors) > 0 {
			b.WriteString("Please rewrite commits to fix the errors listed above (adding fixup commits will not resolve the errors) and force-push the branch again to update the merge request.\n\n")
		}
		if result.Temporary {
			b.WriteString("Some messages may be temporary; please trigger the checks again if they have been resolved.\n\n")
		}
	}

	if len(result.Alerts) > 0 {
		b.WriteString("Alert: @")
		b.WriteString(strings.Join(a.Admins, " @"))
		b.WriteString(".\n\n")
	}

	return strings.TrimRight(b.String(), " \t\n")
}

// CheckCommits checks every commit in base..head in parallel, collecting
// results deterministically (spec.md §5: "collect to a vector first, then
// fold errors" — no non-deterministic early exit).
func (a *Action) CheckCommits(ctx context.Context, reason string, base, head host.CommitID, author host.Identity) ([]Result, errors.E) {
	commits, err := a.Git.LogSummary(ctx, base, head, 0)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(commits))
	errs := make([]errors.E, len(commits))

	g, gctx := errgroup.WithContext(ctx)
	for i, line := range commits {
		i, line := i, line
		sha := line
		if idx := strings.IndexByte(line, ' '); idx >= 0 {
			sha = line[:idx]
		}
		g.Go(func() error {
			result, errE := a.Registry.runTopic(gctx, a.Git, reason, base, host.CommitID(sha), author, a.Checks)
			results[i] = result
			errs[i] = errE
			return nil // errors are folded after collection, never used to cancel siblings
		})
	}
	// g.Wait() never returns non-nil since every goroutine above always
	// returns nil itself; errors are collected into errs instead.
	g.Wait() //nolint:errcheck

	sortedErrs := make([]string, 0, len(errs))
	for _, errE := range errs {
		if errE != nil {
			sortedErrs = append(sortedErrs, errE.Error())
		}
	}
	if len(sortedErrs) > 0 {
		sort.Strings(sortedErrs)
		return results, errors.Errorf("running checks failed: %s", strings.Join(sortedErrs, "; "))
	}

	return results, nil
}
