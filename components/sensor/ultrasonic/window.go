package ultrasonic

import "sort"

// sampleWindow is a fixed-capacity ring of recent raw readings. It is
// owned by the sensor's worker goroutine; no locking needed.
type sampleWindow struct {
	samples []float64
	next    int
	full    bool
}

func newSampleWindow(size int) *sampleWindow {
	return &sampleWindow{samples: make([]float64, 0, size)}
}

// push records a raw reading, evicting the oldest once at capacity.
func (w *sampleWindow) push(v float64) {
	if !w.full && len(w.samples) < cap(w.samples) {
		w.samples = append(w.samples, v)
		if len(w.samples) == cap(w.samples) {
			w.full = true
		}
		return
	}
	w.samples[w.next] = v
	w.next = (w.next + 1) % len(w.samples)
}

// median returns the middle value of the window, averaging the two
// middle samples for even counts. Robust to single-sample echo
// glitches.
func (w *sampleWindow) median() (float64, bool) {
	n := len(w.samples)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, w.samples)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, true
}
