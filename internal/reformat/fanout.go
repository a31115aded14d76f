package reformat

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
)

// Registry is the process-wide, first-writer-wins map of formatter kind
// to Formatter, built once at startup (spec.md §5, §9).
type Registry struct {
	formatters map[string]Formatter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{formatters: map[string]Formatter{}}
}

// Register adds f under f.Kind. A duplicate registration is logged and
// ignored; the first entry wins.
func (r *Registry) Register(f Formatter) {
	if _, exists := r.formatters[f.Kind]; exists {
		logDuplicateFormatter(f.Kind)
		return
	}
	r.formatters[f.Kind] = f
}

func (r *Registry) Get(kind string) (Formatter, bool) {
	f, ok := r.formatters[kind]
	return f, ok
}

// ConfigFiles returns the deduplicated union of every registered
// formatter's ConfigFiles, the paths a per-commit checkout must include
// alongside the commit's own changed files so a formatter can find its
// configuration even on a commit that didn't touch it (spec.md §4.3 step
// 2).
func (r *Registry) ConfigFiles() []string {
	seen := map[string]struct{}{}
	var files []string
	for _, f := range r.formatters {
		for _, cf := range f.ConfigFiles {
			if _, ok := seen[cf]; ok {
				continue
			}
			seen[cf] = struct{}{}
			files = append(files, cf)
		}
	}
	return files
}

// AttributeLookup resolves the `format.<kind>` git attribute for a path.
type AttributeLookup func(ctx context.Context, path, kind string) (AttrValue, errors.E)

// RunFanOut runs every (formatter, path) pair in paths in parallel
// (spec.md §4.3 "Per-path formatter fan-out") and returns the paths that
// failed, deduplicated and in first-failure order.
func (r *Registry) RunFanOut(ctx context.Context, workTree string, paths []string, lookup AttributeLookup) ([]string, errors.E) {
	g, gctx := errgroup.WithContext(ctx)

	type failure struct {
		path string
	}
	failures := make(chan failure, len(paths)*len(r.formatters))

	for _, path := range paths {
		for kind, formatter := range r.formatters {
			path, kind, formatter := path, kind, formatter
			g.Go(func() error {
				attr, errE := lookup(gctx, path, kind)
				if errE != nil {
					return errE
				}
				if !attr.Set {
					return nil
				}
				if errE := formatter.FormatPath(gctx, workTree, path, attr); errE != nil {
					failures <- failure{path: path}
					return nil // collect, do not early-exit (spec.md §5)
				}
				return nil
			})
		}
	}

	err := g.Wait()
	close(failures)

	seen := map[string]struct{}{}
	var failedPaths []string
	for f := range failures {
		if _, ok := seen[f.path]; ok {
			continue
		}
		seen[f.path] = struct{}{}
		failedPaths = append(failedPaths, f.path)
	}

	if err != nil {
		return failedPaths, errors.Wrap(err, "attribute lookup failed during formatter fan-out")
	}
	return failedPaths, nil
}

// checkTreeSanity verifies neither deleted nor untracked files were
// produced by the fan-out (spec.md §4.3 "Tree sanity").
func checkTreeSanity(ctx context.Context, wa *gitdriver.WorkArea, paths []string) errors.E {
	deletedOut, err := wa.Run(ctx, append([]string{"ls-files", "-d", "--"}, paths...)...)
	if err != nil {
		return err
	}
	if deletedOut != "" {
		return errors.Errorf("formatters deleted files: %s", deletedOut)
	}

	untrackedOut, err := wa.Run(ctx, "ls-files", "-o")
	if err != nil {
		return err
	}
	if untrackedOut != "" {
		return errors.Errorf("formatters created untracked files: %s", untrackedOut)
	}
	return nil
}

func logDuplicateFormatter(kind string) {
	logDuplicate(kind)
}
