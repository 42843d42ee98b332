package gateway

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "gateway")
