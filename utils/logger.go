package utils

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger provides leveled, printf-style logging throughout the application.
// Messages carry a "[component]" prefix by convention.
type Logger struct {
	entry *logrus.Logger

	writerOnce sync.Once
	writer     *io.PipeWriter
}

// NewLogger creates a Logger writing text lines to stdout at INFO level.
func NewLogger() *Logger {
	return NewLoggerWith(os.Stdout, "info", "text")
}

// NewLoggerWith creates a Logger with an explicit sink, level and format
// ("text" or "json"). Unknown levels fall back to INFO.
func NewLoggerWith(out io.Writer, level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return &Logger{entry: l}
}

// NewDiscardLogger returns a Logger that drops everything. Used by tests.
func NewDiscardLogger() *Logger {
	return NewLoggerWith(io.Discard, "panic", "text")
}

func (l *Logger) Info(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

// Writer exposes the underlying sink at WARN level, for libraries that
// want an io.Writer (the HTTP server error log, cron). Every call returns
// the same pipe; it lives until Close.
func (l *Logger) Writer() io.Writer {
	l.writerOnce.Do(func() {
		l.writer = l.entry.WriterLevel(logrus.WarnLevel)
	})
	return l.writer
}

// Close releases the pipe behind Writer, if one was opened.
func (l *Logger) Close() error {
	l.writerOnce.Do(func() {})
	if l.writer == nil {
		return nil
	}
	return l.writer.Close()
}
