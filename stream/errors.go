// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrChannelClosed is returned once a stream has been torn down and every
	// pending Event was drained. It wraps io.EOF.
	ErrChannelClosed = fmt.Errorf("stream: channel closed: %w", io.EOF)

	// ErrOverrun is returned by TrySend when the channel is full.
	ErrOverrun = errors.New("stream: event channel full")

	// ErrInvalidSettings is the parent of every *SettingsError.
	ErrInvalidSettings = errors.New("stream: invalid settings")

	// ErrAlreadyOpen is returned by backends that are opened twice.
	ErrAlreadyOpen = errors.New("stream: backend already open")

	// ErrNotOpen is returned by backends started before Open.
	ErrNotOpen = errors.New("stream: backend not open")
)

// SettingsError describes an invalid configuration value.
type SettingsError struct {
	Field  string
	Reason string
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("stream: invalid %s: %s", e.Field, e.Reason)
}

func (e *SettingsError) Unwrap() error { return ErrInvalidSettings }

// BackendError wraps a failure of the audio backend. Op names the lifecycle
// step that failed ("open", "start", "stop", "close" or "stream" for a
// failure reported while running).
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("stream: backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}
