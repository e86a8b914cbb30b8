// Package window implements the fixed-capacity moving-average window and the
// descriptive statistics computed over a signal's full history.
package window

import "math"

// DefaultSize is the default window capacity.
const DefaultSize = 20

// Window is a fixed-capacity FIFO of float64 values with an O(1) running
// mean. It is not safe for concurrent use; the signal store guards it.
type Window struct {
	data []float64
	pos  int
	full bool
	sum  float64

	// pushes since the running sum was last recomputed from the contents
	sinceResum int
}

// New creates a Window with the given capacity. Capacities below 1 are
// raised to 1.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{data: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value once the window is full.
func (w *Window) Push(v float64) {
	if w.full {
		w.sum -= w.data[w.pos]
	}
	w.data[w.pos] = v
	w.sum += v
	w.pos++
	if w.pos >= len(w.data) {
		w.pos = 0
		w.full = true
	}

	// Subtracting evicted values accumulates rounding error; re-sum the
	// contents once per capacity pushes to keep the mean a plain mean.
	// A non-finite sum cannot be repaired by subtraction, so it is
	// recomputed immediately.
	w.sinceResum++
	if w.sinceResum >= len(w.data) || math.IsNaN(w.sum) || math.IsInf(w.sum, 0) {
		w.resum()
	}
}

func (w *Window) resum() {
	var s float64
	for _, v := range w.data[:w.Len()] {
		s += v
	}
	w.sum = s
	w.sinceResum = 0
}

// Len returns the number of values in the window.
func (w *Window) Len() int {
	if w.full {
		return len(w.data)
	}
	return w.pos
}

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.data) }

// Mean returns the arithmetic mean of the window contents, or 0 when the
// window is empty.
func (w *Window) Mean() float64 {
	n := w.Len()
	if n == 0 {
		return 0
	}
	return w.sum / float64(n)
}

// Slice returns the window contents, oldest first.
func (w *Window) Slice() []float64 {
	n := w.Len()
	out := make([]float64, n)
	if w.full {
		copy(out, w.data[w.pos:])
		copy(out[len(w.data)-w.pos:], w.data[:w.pos])
	} else {
		copy(out, w.data[:w.pos])
	}
	return out
}

// Reset empties the window, keeping its capacity.
func (w *Window) Reset() {
	clear(w.data)
	w.pos = 0
	w.full = false
	w.sum = 0
	w.sinceResum = 0
}
