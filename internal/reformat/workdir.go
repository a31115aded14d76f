package reformat

import (
	"os"

	"github.com/sirupsen/logrus"
	"gitlab.com/tozd/go/errors"
)

func newTempWorkDir() (string, errors.E) {
	dir, err := os.MkdirTemp("", "ghostflow-reformat-")
	if err != nil {
		return "", errors.Wrap(err, "cannot create reformat work area")
	}
	return dir, nil
}

func cleanupWorkDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logrus.WithField("dir", dir).WithError(err).Warn("failed to clean up reformat work area")
	}
}
