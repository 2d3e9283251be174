// Package logging builds the structured event logger every other
// package writes through (service dispatch, TSM retries, transport
// errors), using logrus the way a logrus-based field agent does:
// one base *logrus.Entry carrying static fields, further fields added
// per call site via WithField/WithFields.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is a typing convenience so callers don't import logrus
// directly just to log an event.
type Fields = logrus.Fields

// Logger wraps a *logrus.Entry; the zero value is not usable, use New.
type Logger struct {
	entry *logrus.Entry
}

// Options configures the base logger.
type Options struct {
	Level     string // "debug", "info", "warn", "error"; defaults to "info"
	JSON      bool
	Output    io.Writer // defaults to os.Stderr
	DeviceTag string    // attached to every record as "device"
}

// New builds a Logger per opts.
func New(opts Options) *Logger {
	l := logrus.New()
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}
	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	entry := logrus.NewEntry(l)
	if opts.DeviceTag != "" {
		entry = entry.WithField("device", opts.DeviceTag)
	}
	return &Logger{entry: entry}
}

// Nop returns a Logger that discards everything, for tests and
// components that were not handed a configured Logger.
func Nop() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(l)}
}

// With returns a derived Logger carrying additional static fields.
func (lg *Logger) With(fields Fields) *Logger {
	return &Logger{entry: lg.entry.WithFields(fields)}
}

func (lg *Logger) Debugf(format string, args ...any) { lg.entry.Debugf(format, args...) }
func (lg *Logger) Infof(format string, args ...any)  { lg.entry.Infof(format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.entry.Warnf(format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.entry.Errorf(format, args...) }

// Event logs a single structured record: a short message plus
// call-site fields, the shape service dispatch and TSM retry logging
// both want (peer address, invoke ID, service choice, error class/code).
func (lg *Logger) Event(msg string, fields Fields) {
	lg.entry.WithFields(fields).Info(msg)
}

// EventErr is Event for failure paths; it logs at warn level and
// attaches the error under the "error" field.
func (lg *Logger) EventErr(msg string, err error, fields Fields) {
	e := lg.entry.WithFields(fields)
	if err != nil {
		e = e.WithField("error", err.Error())
	}
	e.Warn(msg)
}
