package analysis

import "time"

// sampleRing is a fixed-capacity ring of timestamped scalar samples with an
// explicit logical length. Pushing past capacity overwrites the oldest entry,
// so steady-state operation never allocates.
type sampleRing struct {
	times []time.Time
	vals  []float64
	head  int // index of the oldest entry
	n     int
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{
		times: make([]time.Time, capacity),
		vals:  make([]float64, capacity),
	}
}

func (r *sampleRing) push(t time.Time, v float64) {
	idx := (r.head + r.n) % len(r.vals)
	r.times[idx] = t
	r.vals[idx] = v
	if r.n < len(r.vals) {
		r.n++
	} else {
		r.head = (r.head + 1) % len(r.vals) // Overwrote the oldest
	}
}

// dropBefore discards entries older than cutoff. Entries are time-ordered, so
// this only ever trims from the head.
func (r *sampleRing) dropBefore(cutoff time.Time) {
	for r.n > 0 && r.times[r.head].Before(cutoff) {
		r.head = (r.head + 1) % len(r.vals)
		r.n--
	}
}

func (r *sampleRing) len() int { return r.n }

func (r *sampleRing) at(i int) (time.Time, float64) {
	idx := (r.head + i) % len(r.vals)
	return r.times[idx], r.vals[idx]
}

func (r *sampleRing) mean() float64 {
	if r.n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.n; i++ {
		_, v := r.at(i)
		sum += v
	}
	return sum / float64(r.n)
}

func (r *sampleRing) reset() {
	r.head = 0
	r.n = 0
}

// timeRing is a fixed-capacity ring of timestamps, used for onset and beat
// histories that are pruned to a rolling window.
type timeRing struct {
	buf  []time.Time
	head int
	n    int
}

func newTimeRing(capacity int) *timeRing {
	return &timeRing{buf: make([]time.Time, capacity)}
}

func (r *timeRing) push(t time.Time) {
	idx := (r.head + r.n) % len(r.buf)
	r.buf[idx] = t
	if r.n < len(r.buf) {
		r.n++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

func (r *timeRing) dropBefore(cutoff time.Time) {
	for r.n > 0 && r.buf[r.head].Before(cutoff) {
		r.head = (r.head + 1) % len(r.buf)
		r.n--
	}
}

func (r *timeRing) len() int { return r.n }

func (r *timeRing) at(i int) time.Time {
	return r.buf[(r.head+i)%len(r.buf)]
}

// countBetween returns how many timestamps fall in [from, to).
func (r *timeRing) countBetween(from, to time.Time) int {
	count := 0
	for i := 0; i < r.n; i++ {
		t := r.at(i)
		if !t.Before(from) && t.Before(to) {
			count++
		}
	}
	return count
}

func (r *timeRing) reset() {
	r.head = 0
	r.n = 0
}
