// Package gwlog is a small structured-logging wrapper directly over
// sirupsen/logrus (see DESIGN.md for why this wrapper is fresh-written
// rather than adapted from a broader logging package).
package gwlog

import (
	"github.com/sirupsen/logrus"
)

// Logger is a component-scoped logger. One instance is created per
// subsystem (metastore, s3driver, webdavfs, httpsurface, ...).
type Logger struct {
	entry *logrus.Entry
}

// New constructs the root Logger for a component name.
func New(component string) *Logger {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{entry: base.WithField("component", component)}
}

// With returns a child Logger carrying additional fields, used for
// request-scoped loggers carrying requestId/principalId/mountId.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.entry.WithFields(logrus.Fields(fields)).Debug(msg) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.entry.WithFields(logrus.Fields(fields)).Info(msg) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.entry.WithFields(logrus.Fields(fields)).Warn(msg) }
func (l *Logger) Error(msg string, err error, fields map[string]any) {
	e := l.entry.WithFields(logrus.Fields(fields))
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}
