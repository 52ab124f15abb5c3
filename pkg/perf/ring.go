package perf

import "time"

// Sample is one measurement.
type Sample struct {
	// Op is the timer or source name that produced the sample.
	Op string

	// Bucket is the budget the sample was compared against.
	Bucket Bucket

	// Value is milliseconds for timed buckets and bytes for memory.
	Value float64

	// Target is the budget in the same unit as Value. Zero means the bucket
	// has no budget.
	Target float64

	// Percent is Value as a percentage of Target.
	Percent float64

	Time time.Time
}

// Within reports whether the sample met its target.
func (s Sample) Within() bool {
	return s.Target <= 0 || s.Value <= s.Target
}

// pmRing is a fixed-capacity sample buffer that overwrites its oldest entry.
type pmRing struct {
	buf  []Sample
	next int
	full bool
}

func pmNewRing(capacity int) *pmRing {
	if capacity < 1 {
		capacity = 1
	}
	return &pmRing{buf: make([]Sample, capacity)}
}

func (r *pmRing) push(s Sample) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *pmRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// items returns samples oldest first.
func (r *pmRing) items() []Sample {
	n := r.len()
	out := make([]Sample, 0, n)
	if r.full {
		out = append(out, r.buf[r.next:]...)
	}
	out = append(out, r.buf[:r.next]...)
	return out
}

func (r *pmRing) last() (Sample, bool) {
	if r.len() == 0 {
		return Sample{}, false
	}
	i := r.next - 1
	if i < 0 {
		i = len(r.buf) - 1
	}
	return r.buf[i], true
}
