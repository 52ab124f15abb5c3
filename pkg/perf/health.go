package perf

import (
	"fmt"
	"math"
	"time"
)

// Health weights. They sum to 1.
const (
	WeightPerformance = 0.4
	WeightMemory      = 0.3
	WeightErrors      = 0.2
	WeightTools       = 0.1

	// DegradedBelow is the overall score under which the engine reports
	// itself degraded.
	DegradedBelow = 0.7
)

// Health is the weighted score. Every component is in [0, 1].
type Health struct {
	Performance float64
	Memory      float64
	Errors      float64
	Tools       float64
	Overall     float64
	Degraded    bool
}

// BucketSummary aggregates one bucket's retained samples.
type BucketSummary struct {
	Count       int
	Avg         float64
	Min         float64
	Max         float64
	Over        int
	LastPercent float64
}

// Summary is a point-in-time report of everything the monitor holds.
type Summary struct {
	Buckets         map[Bucket]BucketSummary
	Health          Health
	Memory          MemorySnapshot
	ToolSuccessRate float64
	ToolCalls       int
	RecentErrors    int
	Startup         time.Duration
	Time            time.Time
}

// HealthStatus computes the current score.
func (m *Monitor) HealthStatus() Health {
	if m == nil {
		return Health{Performance: 1, Memory: 1, Errors: 1, Tools: 1, Overall: 1}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pmHealthLocked()
}

func (m *Monitor) pmHealthLocked() Health {
	h := Health{
		Performance: m.pmPerformanceScore(),
		Memory:      m.pmMemoryScore(),
		Errors:      m.pmErrorScore(),
		Tools:       m.pmToolScore(),
	}
	h.Overall = WeightPerformance*h.Performance +
		WeightMemory*h.Memory +
		WeightErrors*h.Errors +
		WeightTools*h.Tools
	h.Overall = math.Round(h.Overall*1000) / 1000
	h.Degraded = h.Overall < DegradedBelow
	return h
}

// pmPerformanceScore is the mean, across timed buckets with samples, of the
// fraction of samples within target.
func (m *Monitor) pmPerformanceScore() float64 {
	var total float64
	var n int
	for _, b := range []Bucket{BucketRender, BucketKeyboard, BucketUpdate} {
		r, ok := m.rings[b]
		if !ok || r.len() == 0 {
			continue
		}
		within := 0
		items := r.items()
		for _, s := range items {
			if s.Within() {
				within++
			}
		}
		total += float64(within) / float64(len(items))
		n++
	}
	if n == 0 {
		return 1
	}
	return total / float64(n)
}

// pmMemoryScore is 1 up to the ceiling and falls linearly to 0 at twice it.
func (m *Monitor) pmMemoryScore() float64 {
	r, ok := m.rings[BucketMemory]
	if !ok {
		return 1
	}
	last, ok := r.last()
	if !ok || last.Target <= 0 {
		return 1
	}
	return pmClamp01(2 - last.Value/last.Target)
}

func (m *Monitor) pmErrorScore() float64 {
	return pmClamp01(1 - float64(m.pmRecentErrors())/float64(m.cfg.ErrorBudget))
}

func (m *Monitor) pmRecentErrors() int {
	cutoff := m.now().Add(-m.cfg.ErrorWindow)
	n := 0
	for _, t := range m.errTimes {
		if !t.Before(cutoff) {
			n++
		}
	}
	return n
}

func (m *Monitor) pmToolScore() float64 {
	if m.toolTotal == 0 {
		return 1
	}
	rate := float64(m.toolOK) / float64(m.toolTotal)
	return pmClamp01(rate / m.cfg.Targets.ToolSuccessRate)
}

// Summary reports per-bucket aggregates and the health score.
func (m *Monitor) Summary() Summary {
	if m == nil {
		return Summary{Buckets: map[Bucket]BucketSummary{}, Health: (*Monitor)(nil).HealthStatus()}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		Buckets:      make(map[Bucket]BucketSummary, len(m.rings)),
		Health:       m.pmHealthLocked(),
		Memory:       m.lastMem,
		ToolCalls:    m.toolTotal,
		RecentErrors: m.pmRecentErrors(),
		Startup:      m.startup,
		Time:         m.now(),
	}
	if m.toolTotal > 0 {
		s.ToolSuccessRate = float64(m.toolOK) / float64(m.toolTotal)
	} else {
		s.ToolSuccessRate = 1
	}
	for b, r := range m.rings {
		s.Buckets[b] = pmSummarise(r.items())
	}
	return s
}

func pmSummarise(items []Sample) BucketSummary {
	if len(items) == 0 {
		return BucketSummary{}
	}
	bs := BucketSummary{Count: len(items), Min: items[0].Value, Max: items[0].Value}
	var sum float64
	for _, s := range items {
		sum += s.Value
		bs.Min = math.Min(bs.Min, s.Value)
		bs.Max = math.Max(bs.Max, s.Value)
		if !s.Within() {
			bs.Over++
		}
	}
	bs.Avg = sum / float64(len(items))
	bs.LastPercent = items[len(items)-1].Percent
	return bs
}

func pmClamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// CheckHealth computes the score and raises a degraded alert when the
// overall value is below DegradedBelow.
func (m *Monitor) CheckHealth() Health {
	h := m.HealthStatus()
	if m == nil || !h.Degraded {
		return h
	}
	m.pmAlert(Alert{
		Bucket:  "health",
		Op:      "health",
		Value:   h.Overall,
		Target:  DegradedBelow,
		Percent: h.Overall * 100,
		Message: fmt.Sprintf("engine degraded: health %.2f", h.Overall),
	})
	return h
}
