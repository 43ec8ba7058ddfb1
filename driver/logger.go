package driver

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the structured-logging surface the conductor and its
// subsystems log through (spec.md §10 "Logging"), generalized from the
// teacher's pkg/mcast/logger.go Logger interface. ipc.Logger only needs
// the Debugf/Warnf/Errorf subset, which this interface satisfies
// structurally.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// logrusLogger is the default Logger backend (spec.md §11 domain-stack
// table), mirroring the teacher's DefaultLogger shape but delegating to
// github.com/sirupsen/logrus instead of the standard library log
// package.
type logrusLogger struct {
	*logrus.Logger
}

// NewLogrusLogger builds the default Logger, writing to stderr at Info
// level, so Debug events are dropped. The returned Logger does not expose
// the underlying *logrus.Logger or its level.
func NewLogrusLogger() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &logrusLogger{Logger: l}
}

func (l *logrusLogger) Debugf(format string, v ...interface{}) { l.Logger.Debugf(format, v...) }
func (l *logrusLogger) Infof(format string, v ...interface{})  { l.Logger.Infof(format, v...) }
func (l *logrusLogger) Warnf(format string, v ...interface{})  { l.Logger.Warnf(format, v...) }
func (l *logrusLogger) Errorf(format string, v ...interface{}) { l.Logger.Errorf(format, v...) }
