// SPDX-License-Identifier: EPL-2.0

// Package logger builds the logrus logger used by the command line tool.
//
// Example TOML:
//
//	[log]
//	level = "debug"
//	format = "json"
//	logfile = "/var/log/audstream.log"
//
// Environment variables: AUDSTREAM_LOG_LEVEL, AUDSTREAM_LOG_FORMAT and
// AUDSTREAM_LOG_LOGFILE.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Configurer supplies the logging settings.
type Configurer interface {
	Level() string
	Format() string
	LogFile() string
}

// Logger is a configured logrus logger. Close releases the log file.
type Logger struct {
	*logrus.Logger
	file io.Closer
}

// New builds a logger from c. Entries at error level and above go to
// stderr, the rest to stdout, and all of them to the log file when one is
// configured.
func New(c Configurer) (*Logger, error) {
	return newLogger(c, os.Stdout, os.Stderr)
}

func newLogger(c Configurer, stdout, stderr io.Writer) (*Logger, error) {
	l := &Logger{Logger: logrus.New()}
	l.Out = io.Discard
	l.Hooks.Add(&splitHook{out: stdout, errOut: stderr})

	l.SetLevel(ParseLevel(c.Level()))
	l.Formatter = formatter(c.Format())

	if path := c.LogFile(); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logger: open log file: %w", err)
		}
		l.file = f
		l.Hooks.Add(&fileHook{w: f})
	}
	return l, nil
}

// ParseLevel maps debug, warn and error to their logrus levels. Anything
// else is info.
func ParseLevel(lvl string) logrus.Level {
	switch strings.ToLower(lvl) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func formatter(format string) logrus.Formatter {
	if strings.ToLower(format) == "json" {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{
		FullTimestamp: true,
	}
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
