package reformat

import "github.com/sirupsen/logrus"

func logDuplicate(kind string) {
	logrus.WithField("kind", kind).Warn("duplicate formatter registration ignored, first entry wins")
}

func logCommentFailure(mrID int64, err error) {
	logrus.WithFields(logrus.Fields{"mr": mrID, "error": err}).Warn("failed to post reformat comment")
}
