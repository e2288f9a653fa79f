// SPDX-License-Identifier: EPL-2.0

package audstream

import "math"

// Level summarizes the amplitude of a block of samples.
type Level struct {
	Peak float64
	RMS  float64
}

// Measure returns the peak and RMS of samples. An empty block is silence.
func Measure(samples []float32) Level {
	if len(samples) == 0 {
		return Level{}
	}
	var peak, sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return Level{
		Peak: peak,
		RMS:  math.Sqrt(sum / float64(len(samples))),
	}
}

// DBFS converts the RMS to decibels relative to full scale. Silence is
// -Inf.
func (l Level) DBFS() float64 {
	if l.RMS <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(l.RMS)
}

// PeakDBFS converts the peak to decibels relative to full scale.
func (l Level) PeakDBFS() float64 {
	if l.Peak <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(l.Peak)
}
