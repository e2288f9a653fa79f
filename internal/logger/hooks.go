// SPDX-License-Identifier: EPL-2.0

package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// splitHook writes error and worse entries to errOut and everything else
// to out, formatted by the logger's formatter.
type splitHook struct {
	out    io.Writer
	errOut io.Writer
}

func (h *splitHook) Fire(entry *logrus.Entry) error {
	serialized, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	if entry.Level <= logrus.ErrorLevel {
		_, err = h.errOut.Write(serialized)
	} else {
		_, err = h.out.Write(serialized)
	}
	return err
}

func (h *splitHook) Levels() []logrus.Level { return logrus.AllLevels }

// fileHook appends every entry to a log file.
type fileHook struct {
	w io.Writer
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	serialized, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.w.Write(serialized)
	return err
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }
