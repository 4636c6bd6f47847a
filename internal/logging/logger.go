// Package logging wraps logrus behind the small interface the event loop,
// connection state machine, and CGI executor call into. Grounded on the
// hook/field pattern in nabbar-golib/logger/types — fields are passed as
// logrus.Fields rather than interpolated into the message, so a log sink
// (syslog, json, stdout) can render them however it wants.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the structured sink every core component logs through.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing to stderr at the given level name
// ("debug", "info", "warn", "error"); an unrecognized name falls back to
// info, matching the teacher's preference for permissive defaults over
// startup panics on cosmetic settings.
func New(level string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: logrus.NewEntry(l)}
}

func (l *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) Debug(msg string) { l.entry.Debug(msg) }
func (l *Logger) Info(msg string)  { l.entry.Info(msg) }
func (l *Logger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *Logger) Error(msg string) { l.entry.Error(msg) }

// Debugf/Infof/Warnf/Errorf mirror the teacher's logf(format, args...) call
// shape so call sites read the same as badu-http's server.go helpers.
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
