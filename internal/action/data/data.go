// Package data implements the `data` action (spec.md §6): mirroring blob
// objects a contributor pushed under `refs/<data_ns>/<ALGO>/<hex>` out to
// rsync destinations, verifying each blob's content hash before trusting
// it. Grounded on ghostflow/src/actions/data.rs, rewritten around
// gitdriver's subprocess wrapper instead of hand-rolled process::Command
// calls.
package data

import (
	"context"
	"crypto/md5"  //nolint:gosec // MD5 is one of three hash algorithms the ref-naming scheme itself supports, not used for security
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
)

// Result is the outcome of Action.FetchData.
type Result int

const (
	NoData Result = iota
	NoDestinations
	DataPushed
)

// Action fetches data refs pushed to a repository and mirrors their
// verified contents to a set of rsync destinations.
type Action struct {
	Git          *gitdriver.Context
	Destinations []string
	RefNamespace string // default "data"
	KeepRefs     bool
}

// New returns an Action with the default "data" ref namespace.
func New(git *gitdriver.Context) *Action {
	return &Action{Git: git, RefNamespace: "data"}
}

func (a *Action) namespace() string {
	if a.RefNamespace == "" {
		return "data"
	}
	return a.RefNamespace
}

// FetchData fetches all data refs from repo, verifies each blob's content
// hash against the hex digest carried in its refname, and mirrors the
// verified objects to every configured destination via rsync.
func (a *Action) FetchData(ctx context.Context, repo host.Repo) (Result, errors.E) {
	dataRefNS := "refs/" + a.namespace() + "/"
	dataRefGlob := dataRefNS + "*"

	refs, errE := a.listRemoteRefs(ctx, repo.URL, dataRefGlob)
	if errE != nil {
		if errE.Error() == errNoData {
			return NoData, nil
		}
		return 0, errE
	}
	if len(refs) == 0 {
		return NoData, nil
	}

	if _, err := a.Git.Run(ctx, "fetch", "--force", repo.URL, dataRefGlob+":"+dataRefGlob); err != nil {
		return 0, err
	}

	if len(a.Destinations) == 0 {
		return NoDestinations, nil
	}

	if !a.KeepRefs {
		args := []string{"push", "--atomic", "--porcelain", repo.URL}
		for _, ref := range refs {
			args = append(args, ":"+ref)
		}
		if _, err := a.Git.Run(ctx, args...); err != nil {
			return 0, errors.Wrapf(err, "cannot delete remote data refs from %s", repo.URL)
		}
	}

	tempDir, err := os.MkdirTemp("", "ghostflow-data-")
	if err != nil {
		return 0, errors.Wrap(err, "cannot create temporary directory for data objects")
	}
	defer os.RemoveAll(tempDir)

	namespaceParts := 1 + strings.Count(a.namespace(), "/")
	var validRefs []string
	for _, ref := range refs {
		algo, expectedHash, ok := parseDataRefSuffix(ref, namespaceParts)
		if !ok {
			logrus.WithField("ref", ref).Warn("unsupported data refname")
			a.lenientDeleteRef(ctx, ref)
			continue
		}

		contents, errE := a.blobContents(ctx, ref)
		if errE != nil {
			return 0, errE
		}

		actualHash, ok := hashWith(algo, contents)
		if !ok {
			logrus.WithField("algo", algo).Error("unsupported digest algorithm; ignoring")
			continue
		}

		if actualHash != expectedHash {
			logrus.WithFields(logrus.Fields{"ref": ref, "expected": expectedHash, "actual": actualHash}).Warn("data hash mismatch")
			a.lenientDeleteRef(ctx, ref)
			continue
		}

		outputDir := filepath.Join(tempDir, algo)
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return 0, errors.Wrapf(err, "cannot create directory %s", outputDir)
		}
		outputPath := filepath.Join(outputDir, actualHash)
		if err := os.WriteFile(outputPath, contents, 0o444); err != nil {
			return 0, errors.Wrapf(err, "cannot write data file %s", outputPath)
		}
		validRefs = append(validRefs, ref)
	}

	source := tempDir + string(os.PathSeparator)
	for _, destination := range a.Destinations {
		cmd := exec.CommandContext(ctx, "rsync", "--recursive", "--perms", "--times", "--verbose", source, destination)
		if out, err := cmd.CombinedOutput(); err != nil {
			return 0, errors.Wrapf(err, "cannot rsync data to %s: %s", destination, string(out))
		}
	}

	if !a.KeepRefs {
		for _, ref := range validRefs {
			a.lenientDeleteRef(ctx, ref)
		}
	}

	return DataPushed, nil
}

const errNoData = "ghostflow/action/data: no data refs"

func (a *Action) listRemoteRefs(ctx context.Context, remoteURL, glob string) ([]string, errors.E) {
	cmd := exec.CommandContext(ctx, "git", "ls-remote", "--quiet", "--exit-code", remoteURL, glob)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 2 {
			return nil, errors.New(errNoData)
		}
		return nil, errors.Wrapf(err, "cannot list data refs %s in %s", glob, remoteURL)
	}
	var refs []string
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) == 2 {
			refs = append(refs, fields[1])
		}
	}
	return refs, nil
}

// parseDataRefSuffix extracts the algorithm name and expected hex digest
// from a data refname ("refs/<ns.../>ALGO/hex").
func parseDataRefSuffix(ref string, namespaceParts int) (algo, hexDigest string, ok bool) {
	parts := strings.Split(ref, "/")
	if len(parts) < namespaceParts+1+2 {
		return "", "", false
	}
	tail := parts[len(parts)-2:]
	return tail[0], tail[1], true
}

func hashWith(algo string, contents []byte) (string, bool) {
	var h hash.Hash
	switch algo {
	case "MD5":
		h = md5.New() //nolint:gosec
	case "SHA256":
		h = sha256.New()
	case "SHA512":
		h = sha512.New()
	default:
		return "", false
	}
	h.Write(contents)
	return hex.EncodeToString(h.Sum(nil)), true
}

func (a *Action) blobContents(ctx context.Context, refname string) ([]byte, errors.E) {
	objType, err := a.Git.Run(ctx, "cat-file", "-t", refname)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot get the type of %s", refname)
	}
	if strings.TrimSpace(objType) != "blob" {
		return nil, errors.Errorf("unsupported data object type for %s: %s", refname, strings.TrimSpace(objType))
	}
	contents, err := a.Git.Run(ctx, "cat-file", "blob", refname)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot get the contents of %s", refname)
	}
	return []byte(contents), nil
}

func (a *Action) deleteRef(ctx context.Context, refname string) errors.E {
	_, err := a.Git.Run(ctx, "update-ref", "-d", refname)
	return err
}

func (a *Action) lenientDeleteRef(ctx context.Context, refname string) {
	if err := a.deleteRef(ctx, refname); err != nil {
		logrus.WithField("ref", refname).WithError(err).Error("failed to delete data ref")
	}
}
