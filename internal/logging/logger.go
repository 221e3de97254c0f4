// Package logging wraps logrus into a single process-wide manager, the
// way the teacher's internal/pkg/logger.LoggerManager does: one
// configured *logrus.Logger, JSON or text formatted, optionally
// rotated to disk through lumberjack, with a small set of field-tagged
// helper functions call sites use instead of the raw logrus API.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns the configured logrus instance for a process.
type Manager struct {
	logger *logrus.Logger
}

// Options configures a Manager. Output is one of "stdout", "file", or
// "both"; Format is "json" or "text".
type Options struct {
	Level    string
	Format   string
	Output   string
	FilePath string
}

// New builds a Manager from Options, matching the teacher's
// InitLogger(cfg *LogConfig) shape.
func New(opts Options) (*Manager, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}
	logger.SetLevel(level)

	if opts.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	var out io.Writer
	switch opts.Output {
	case "file":
		out = fileWriter(opts.FilePath)
	case "both":
		out = io.MultiWriter(os.Stdout, fileWriter(opts.FilePath))
	default:
		out = os.Stdout
	}
	logger.SetOutput(out)

	return &Manager{logger: logger}, nil
}

func fileWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
}

// Logger returns the underlying *logrus.Logger for call sites that need
// the full logrus API (e.g. gin's request-logging middleware adapter).
func (m *Manager) Logger() *logrus.Logger {
	return m.logger
}

// Info logs a structured info-level event with the given component and
// fields, mirroring the teacher's logger.LogSystemEvent helper.
func (m *Manager) Info(component, event, message string, fields logrus.Fields) {
	m.entry(component, event, fields).Info(message)
}

// Error logs a structured error-level event.
func (m *Manager) Error(component, event, message string, err error, fields logrus.Fields) {
	e := m.entry(component, event, fields)
	if err != nil {
		e = e.WithField("error", err.Error())
	}
	e.Error(message)
}

// Warn logs a structured warn-level event.
func (m *Manager) Warn(component, event, message string, fields logrus.Fields) {
	m.entry(component, event, fields).Warn(message)
}

func (m *Manager) entry(component, event string, fields logrus.Fields) *logrus.Entry {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["component"] = component
	fields["event"] = event
	return m.logger.WithFields(fields)
}
