package hcsm

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "hcsm")
