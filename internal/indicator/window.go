package indicator

import "trident/internal/model"

// Window holds the most recent bars in a fixed-capacity ring. Old bars are
// overwritten once capacity is reached.
type Window struct {
	buf   []model.Bar
	idx   int
	count int
}

// NewWindow creates a bar window with the given capacity.
func NewWindow(capacity int) *Window {
	return &Window{buf: make([]model.Bar, capacity)}
}

// Push appends a bar, evicting the oldest when full.
func (w *Window) Push(bar model.Bar) {
	w.buf[w.idx] = bar
	w.idx = (w.idx + 1) % len(w.buf)
	w.count++
}

// Len returns the number of bars held, capped at capacity.
func (w *Window) Len() int {
	if w.count > len(w.buf) {
		return len(w.buf)
	}
	return w.count
}

// Last returns the n most recent bars, oldest first. If fewer than n bars are
// held, all of them are returned.
func (w *Window) Last(n int) []model.Bar {
	held := w.Len()
	if n > held {
		n = held
	}
	out := make([]model.Bar, 0, n)
	start := w.idx - n
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}

// MeanVolume averages volume over the n most recent bars.
func (w *Window) MeanVolume(n int) float64 {
	bars := w.Last(n)
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}
