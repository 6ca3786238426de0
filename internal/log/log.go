package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns the process logger: JSON at info level in prod, text at debug
// level everywhere else.
func New(env string) *logrus.Entry {
	l := logrus.New()
	l.Out = os.Stdout

	if env == "prod" {
		l.Formatter = &logrus.JSONFormatter{}
		l.Level = logrus.InfoLevel
	} else {
		l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
		l.Level = logrus.DebugLevel
	}

	return l.WithField("env", env)
}

// Discard is a logger for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

