// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ik5/audstream/stream"
)

// ManualBackend is a stream.Backend driven by the test: every Invoke runs one
// callback on the calling goroutine. Stop waits for an in-flight Invoke, so no
// callback runs after Stop returns, like a real driver.
//
// Invoke is meant to be called from one goroutine at a time.
type ManualBackend struct {
	// Errors returned by the lifecycle methods.
	OpenErr, StartErr, StopErr, CloseErr error

	mu       sync.RWMutex
	settings stream.Settings
	host     stream.Host
	in, out  []float32
	opened   bool
	running  bool
	stopped  bool
	closed   bool
	calls    atomic.Int64
}

func NewManualBackend() *ManualBackend { return &ManualBackend{} }

func (m *ManualBackend) Open(s stream.Settings, host stream.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opened {
		return stream.ErrAlreadyOpen
	}
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.settings = s
	m.host = host
	m.in = make([]float32, s.BufferLen(stream.Input))
	m.out = make([]float32, s.BufferLen(stream.Output))
	m.opened = true
	return nil
}

func (m *ManualBackend) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opened {
		return stream.ErrNotOpen
	}
	if m.StartErr != nil {
		return m.StartErr
	}
	m.running = true
	return nil
}

func (m *ManualBackend) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = false
	m.stopped = true
	return m.StopErr
}

func (m *ManualBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return m.CloseErr
}

// Invoke runs one callback. fill, when not nil, writes the input samples.
// It returns a copy of the output, the callback result, and false when the
// backend is not running and no callback happened.
func (m *ManualBackend) Invoke(fill func(in []float32)) ([]float32, stream.Result, bool) {
	return m.InvokeWith(fill, stream.TimeInfo{})
}

// InvokeValue runs one callback with every input sample set to v.
func (m *ManualBackend) InvokeValue(v float32) ([]float32, stream.Result, bool) {
	return m.Invoke(func(in []float32) {
		for i := range in {
			in[i] = v
		}
	})
}

// InvokeWith is Invoke with explicit timing information.
func (m *ManualBackend) InvokeWith(fill func(in []float32), info stream.TimeInfo) ([]float32, stream.Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.running {
		return nil, stream.Complete, false
	}
	if fill != nil {
		fill(m.in)
	}
	res := m.host.Process(m.in, m.out, info)
	m.calls.Add(1)
	return slices.Clone(m.out), res, true
}

// Fail reports a driver failure to the host.
func (m *ManualBackend) Fail(err error) { m.currentHost().Fail(err) }

// Finish reports the end of data to the host.
func (m *ManualBackend) Finish() { m.currentHost().Finish() }

func (m *ManualBackend) currentHost() stream.Host {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.host
}

// Calls is the number of callbacks run.
func (m *ManualBackend) Calls() int { return int(m.calls.Load()) }

func (m *ManualBackend) Settings() stream.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

func (m *ManualBackend) Opened() bool  { return m.flag(&m.opened) }
func (m *ManualBackend) Running() bool { return m.flag(&m.running) }
func (m *ManualBackend) Stopped() bool { return m.flag(&m.stopped) }
func (m *ManualBackend) Closed() bool  { return m.flag(&m.closed) }

func (m *ManualBackend) flag(f *bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *f
}
