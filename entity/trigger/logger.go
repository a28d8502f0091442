package trigger

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "trigger")
