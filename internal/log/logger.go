package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"mfo/internal/errors"

	"github.com/sirupsen/logrus"
)

// Field is a single structured key/value attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for building a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logging is the leveled, structured logger every component receives.
type Logging interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	With(fields ...Field) Logging
	WithError(err error) Logging
	WithContext(ctx context.Context) Logging
}

// Logger is the logrus-backed Logging implementation.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

type options struct {
	out     io.Writer
	json    bool
	file    string
	level   string
	noColor bool
}

// Option configures NewLogger.
type Option func(*options)

// WithOutput sets the console writer (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON switches to one JSON object per line.
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithFile mirrors every line into the file at path (appended).
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithLevel sets the minimum level: debug, info, warn or error.
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

// NewLogger creates a logger. A log file that cannot be opened is reported
// on the console logger and otherwise ignored.
func NewLogger(opts ...Option) *Logger {
	o := &options{out: os.Stdout, level: "info"}
	for _, opt := range opts {
		opt(o)
	}

	base := logrus.New()
	if o.json {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   true,
		})
	}

	lvl, err := ParseLevel(o.level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	l := &Logger{entry: logrus.NewEntry(base)}
	out := o.out
	if o.file != "" {
		f, ferr := os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if ferr != nil {
			base.SetOutput(out)
			l.entry.WithField("path", o.file).WithError(ferr).Warn("Failed to open log file, logging to console only")
		} else {
			l.file = f
			out = io.MultiWriter(out, f)
		}
	}
	base.SetOutput(out)
	if err != nil {
		l.entry.WithField("level", o.level).Warn("Unknown log level, using info")
	}
	return l
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

// ParseLevel maps the configuration spelling of a level onto logrus.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel, nil
	case "", "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	}
	return logrus.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// SetLevel changes the minimum level at runtime, e.g. after a config reload.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.entry.Logger.SetLevel(lvl)
	return nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Info(args ...interface{})                  { l.entry.Info(args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(args ...interface{})                  { l.entry.Warn(args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...Field) Logging {
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		lf[f.Key] = f.Value
	}
	return &Logger{entry: l.entry.WithFields(lf), file: l.file}
}

// WithError attaches err plus whatever the error type knows about itself:
// the kind, and the path or param for file and config errors.
func (l *Logger) WithError(err error) Logging {
	if err == nil {
		return l.With(F("error", "<nil>"))
	}
	fields := []Field{F("error", err.Error()), F("error_kind", errors.KindOf(err).String())}
	var fe *errors.FileError
	if errors.As(err, &fe) && fe.Path() != "" {
		fields = append(fields, F("path", fe.Path()))
	}
	var ce *errors.ConfigError
	if errors.As(err, &ce) && ce.Param() != "" {
		fields = append(fields, F("param", ce.Param()))
	}
	return l.With(fields...)
}

// WithContext binds ctx to the entry so hooks can read it.
func (l *Logger) WithContext(ctx context.Context) Logging {
	if ctx == nil {
		return l
	}
	return &Logger{entry: l.entry.WithContext(ctx), file: l.file}
}

var _ Logging = (*Logger)(nil)
