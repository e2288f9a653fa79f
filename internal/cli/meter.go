// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ik5/audstream"
	"github.com/ik5/audstream/stream"
)

// meter consumes a stream and prints the input level every refresh of
// stream time. With loopback, every Out buffer plays the latest input.
type meter struct {
	w        io.Writer
	log      logrus.FieldLogger
	refresh  time.Duration
	loopback bool

	settings stream.Settings
	last     []float32
	elapsed  time.Duration
	peak     float64
	sum      float64
	count    int
	lines    int
}

func newMeter(w io.Writer, log logrus.FieldLogger, s stream.Settings, refresh time.Duration, loopback bool) *meter {
	return &meter{
		w:        w,
		log:      log,
		refresh:  refresh,
		loopback: loopback,
		settings: s,
		last:     make([]float32, s.BufferLen(stream.Input)),
	}
}

func (m *meter) run(ctx context.Context, h *stream.Handle) error {
	for ev, err := range h.Events(ctx) {
		if err != nil {
			m.flush()
			return err
		}
		switch ev.Kind {
		case stream.KindIn:
			m.input(ev.Buffer.Samples())
		case stream.KindOut:
			m.output(ev.Buffer)
		case stream.KindUpdate:
			m.elapsed += ev.Elapsed
			if m.elapsed >= m.refresh {
				m.flush()
			}
		}
	}
	m.flush()
	return nil
}

func (m *meter) input(samples []float32) {
	l := audstream.Measure(samples)
	m.peak = max(m.peak, l.Peak)
	m.sum += l.RMS * l.RMS * float64(len(samples))
	m.count += len(samples)
	if m.loopback {
		copy(m.last, samples)
	}
}

func (m *meter) output(buf *stream.Buffer) {
	out := buf.Samples()
	inCh := int(m.settings.InChannels)
	if !m.loopback || inCh == 0 {
		clear(out)
		return
	}
	outCh := buf.Channels()
	for f := range buf.Frames() {
		for c := range outCh {
			out[f*outCh+c] = m.last[f*inCh+c%inCh]
		}
	}
}

func (m *meter) flush() {
	if m.count == 0 {
		return
	}
	l := audstream.Level{Peak: m.peak, RMS: math.Sqrt(m.sum / float64(m.count))}
	fmt.Fprintf(m.w, "%8.1f dBFS  peak %6.1f dBFS  %s\n", l.DBFS(), l.PeakDBFS(), bar(l.DBFS()))
	m.lines++
	m.elapsed = 0
	m.peak, m.sum, m.count = 0, 0, 0
}

// bar draws one # per 3 dB above -60 dBFS.
func bar(db float64) string {
	if math.IsInf(db, -1) || db < -60 {
		return ""
	}
	n := int((db + 60) / 3)
	b := make([]byte, n)
	for i := range b {
		b[i] = '#'
	}
	return string(b)
}

func printStats(w io.Writer, log logrus.FieldLogger, h *stream.Handle) {
	st := h.Stats()
	fmt.Fprintf(w, "callbacks %d  delivered %d  dropped %d  underflows %d  xruns %d  faults %d\n",
		st.Callbacks, st.Delivered, st.Dropped(), st.Underflows, st.Xruns, st.Faults)
	log.WithFields(logrus.Fields{
		"stream":          h.ID(),
		"callbacks":       st.Callbacks,
		"dropped_in":      st.DroppedIn,
		"dropped_out":     st.DroppedOut,
		"dropped_updates": st.DroppedUpdates,
		"late_output":     st.LateOutput,
	}).Debug("stream stats")
}
