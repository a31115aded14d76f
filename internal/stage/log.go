package stage

import "github.com/sirupsen/logrus"

func logStageWarn(key, value string, err error) {
	logrus.WithField(key, value).WithError(err).Warn("failed to post stage notification")
}
