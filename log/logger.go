// Package log builds the structured loggers handed to the solver, the
// executor and the manager.
package log

import (
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "info"

// New returns a logger writing text records at or above level to w. An empty
// level means DefaultLevel.
func New(w io.Writer, level string) (*logrus.Logger, error) {
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	l := logrus.New()
	l.Out = w
	l.Level = lvl
	l.Formatter = &logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	}
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}
