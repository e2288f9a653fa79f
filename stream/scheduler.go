// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"sync"
	"sync/atomic"
	"time"
)

// scheduler emits Update events. With a zero interval the bridge calls tick
// once per processed invocation; otherwise a ticker goroutine does.
//
// last is only advanced when an Update is delivered, so the elapsed time of a
// dropped Update is folded into the next one.
type scheduler struct {
	events   *EventChannel
	settings Settings
	interval time.Duration
	now      func() time.Time
	dropped  *atomic.Uint64

	last time.Time

	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

func newScheduler(events *EventChannel, settings Settings, interval time.Duration, now func() time.Time, dropped *atomic.Uint64) *scheduler {
	return &scheduler{
		events:   events,
		settings: settings,
		interval: interval,
		now:      now,
		dropped:  dropped,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *scheduler) perCallback() bool { return s.interval <= 0 }

// start records the stream start time and launches the ticker when needed.
func (s *scheduler) start(at time.Time) {
	s.last = at
	if s.perCallback() {
		return
	}
	s.started = true
	go s.loop()
}

func (s *scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *scheduler) tick() {
	now := s.now()
	elapsed := now.Sub(s.last)
	if elapsed < 0 {
		elapsed = 0
	}

	switch s.events.TrySend(Event{Kind: KindUpdate, Elapsed: elapsed, Settings: s.settings}) {
	case nil:
		s.last = now
	case ErrOverrun:
		s.dropped.Add(1)
	}
}

// stop halts and joins the ticker goroutine.
func (s *scheduler) stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.started {
			<-s.done
		}
	})
}
