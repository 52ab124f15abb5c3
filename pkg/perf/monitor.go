package perf

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
)

const tracerName = "gitlab.com/tinyland/lab/flowdeck/pkg/perf"

// Alert describes a measurement that crossed the alert fraction of its
// target.
type Alert struct {
	Bucket  Bucket
	Op      string
	Value   float64
	Target  float64
	Percent float64
	Message string
}

type pmTimer struct {
	start time.Time
	span  trace.Span
}

// Monitor records timings, memory and outcome counters. It is safe for
// concurrent use. A nil *Monitor ignores every call.
type Monitor struct {
	cfg    Config
	logger *slog.Logger
	bus    *events.Bus
	tracer trace.Tracer
	memory MemorySource
	now    func() time.Time

	mu        sync.Mutex
	timers    map[string]pmTimer
	rings     map[Bucket]*pmRing
	errTimes  []time.Time
	toolOK    int
	toolTotal int
	startup   time.Duration
	lastMem   MemorySnapshot
	onAlert   []func(Alert)

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithBus publishes alerts to bus.
func WithBus(bus *events.Bus) Option {
	return func(m *Monitor) { m.bus = bus }
}

// WithTracer overrides the tracer used for timer spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Monitor) { m.tracer = t }
}

// WithMemorySource overrides how memory is sampled.
func WithMemorySource(src MemorySource) Option {
	return func(m *Monitor) { m.memory = src }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a monitor. Zero config fields take their defaults.
func New(cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:    cfg.pmDefaults(),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		memory: ReadMemory,
		now:    time.Now,
		timers: make(map[string]pmTimer),
		rings:  make(map[Bucket]*pmRing),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Config returns the effective configuration.
func (m *Monitor) Config() Config { return m.cfg }

// OnAlert registers a callback invoked synchronously for every alert.
func (m *Monitor) OnAlert(fn func(Alert)) {
	if m == nil || fn == nil {
		return
	}
	m.mu.Lock()
	m.onAlert = append(m.onAlert, fn)
	m.mu.Unlock()
}

// BucketFor maps an operation name to its bucket by prefix.
func BucketFor(op string) Bucket {
	name := strings.ToLower(op)
	switch {
	case strings.HasPrefix(name, "render"), strings.HasPrefix(name, "frame"):
		return BucketRender
	case strings.HasPrefix(name, "key"):
		return BucketKeyboard
	case strings.HasPrefix(name, "tool"), strings.HasPrefix(name, "external"):
		return BucketTool
	case strings.HasPrefix(name, "startup"):
		return BucketStartup
	default:
		return BucketUpdate
	}
}

// StartTimer begins timing op. Starting an op that is already running
// restarts it.
func (m *Monitor) StartTimer(op string) {
	if m == nil {
		return
	}
	_, span := m.tracer.Start(context.Background(), op,
		trace.WithAttributes(attribute.String("flowdeck.bucket", string(BucketFor(op)))))

	m.mu.Lock()
	if prev, ok := m.timers[op]; ok {
		prev.span.End()
	}
	m.timers[op] = pmTimer{start: m.now(), span: span}
	m.mu.Unlock()
}

// EndTimer stops timing op and records the elapsed time. It returns false
// when no timer named op was running.
func (m *Monitor) EndTimer(op string) (time.Duration, bool) {
	if m == nil {
		return 0, false
	}
	m.mu.Lock()
	t, ok := m.timers[op]
	if ok {
		delete(m.timers, op)
	}
	m.mu.Unlock()
	if !ok {
		m.logger.Debug("perf: end without start", "op", op)
		return 0, false
	}

	d := m.now().Sub(t.start)
	s, alerted := m.Observe(op, d)
	t.span.SetAttributes(
		attribute.Float64("flowdeck.duration_ms", s.Value),
		attribute.Float64("flowdeck.percent_of_target", s.Percent),
	)
	if alerted {
		t.span.AddEvent("budget_alert")
	}
	t.span.End()
	return d, true
}

// Observe records a duration for op directly. It returns the stored sample
// and whether it raised an alert.
func (m *Monitor) Observe(op string, d time.Duration) (Sample, bool) {
	if m == nil {
		return Sample{}, false
	}
	b := BucketFor(op)
	target := m.cfg.Targets.latency(b)
	return m.pmRecord(Sample{
		Op:     op,
		Bucket: b,
		Value:  pmMillis(d),
		Target: pmMillis(target),
		Time:   m.now(),
	})
}

// Track times fn under op.
func (m *Monitor) Track(op string, fn func()) time.Duration {
	m.StartTimer(op)
	fn()
	d, _ := m.EndTimer(op)
	return d
}

// RecordStartup records the time taken to reach the first usable frame.
func (m *Monitor) RecordStartup(d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.startup = d
	m.mu.Unlock()
	m.Observe("startup", d)
}

// RecordToolResult counts one external tool call.
func (m *Monitor) RecordToolResult(tool string, ok bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.toolTotal++
	if ok {
		m.toolOK++
	}
	rate := float64(m.toolOK) / float64(m.toolTotal)
	m.mu.Unlock()

	if rate < m.cfg.Targets.ToolSuccessRate {
		m.pmAlert(Alert{
			Bucket:  BucketTool,
			Op:      tool,
			Value:   rate,
			Target:  m.cfg.Targets.ToolSuccessRate,
			Percent: rate * 100,
			Message: fmt.Sprintf("external tool success rate %.1f%% below %.0f%%", rate*100, m.cfg.Targets.ToolSuccessRate*100),
		})
	}
}

// RecordError counts one error against the health score.
func (m *Monitor) RecordError() {
	if m == nil {
		return
	}
	now := m.now()
	m.mu.Lock()
	m.errTimes = append(m.errTimes, now)
	if len(m.errTimes) > m.cfg.MaxSamples {
		m.errTimes = m.errTimes[len(m.errTimes)-m.cfg.MaxSamples:]
	}
	m.mu.Unlock()
}

// SampleMemory reads memory once and records it.
func (m *Monitor) SampleMemory(ctx context.Context) (MemorySnapshot, error) {
	if m == nil {
		return MemorySnapshot{}, nil
	}
	snap, err := m.memory(ctx)
	if err != nil {
		m.logger.Debug("perf: process memory unavailable", "error", err)
	}
	if snap.Time.IsZero() {
		snap.Time = m.now()
	}
	m.mu.Lock()
	m.lastMem = snap
	m.mu.Unlock()

	used := snap.Resident()
	m.pmRecord(Sample{
		Op:     "memory",
		Bucket: BucketMemory,
		Value:  float64(used),
		Target: float64(m.cfg.Targets.MemoryBytes),
		Time:   snap.Time,
	})
	return snap, err
}

// Start launches the background memory sampler when TrackMemory is set.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil || !m.cfg.TrackMemory {
		return
	}
	m.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(m.cfg.SampleInterval)
			defer ticker.Stop()
			m.SampleMemory(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					m.SampleMemory(ctx)
				}
			}
		}()
	})
}

// Stop halts the sampler and ends any open timer spans.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		m.mu.Lock()
		for op, t := range m.timers {
			t.span.End()
			delete(m.timers, op)
		}
		m.mu.Unlock()
	})
}

// Samples returns the retained samples for a bucket, oldest first.
func (m *Monitor) Samples(b Bucket) []Sample {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rings[b]
	if !ok {
		return nil
	}
	return r.items()
}

func (m *Monitor) pmRecord(s Sample) (Sample, bool) {
	if s.Target > 0 {
		s.Percent = s.Value / s.Target * 100
	}
	m.mu.Lock()
	r, ok := m.rings[s.Bucket]
	if !ok {
		r = pmNewRing(m.cfg.MaxSamples)
		m.rings[s.Bucket] = r
	}
	r.push(s)
	m.mu.Unlock()

	if s.Target <= 0 || s.Value < s.Target*m.cfg.AlertThreshold {
		return s, false
	}
	m.pmAlert(Alert{
		Bucket:  s.Bucket,
		Op:      s.Op,
		Value:   s.Value,
		Target:  s.Target,
		Percent: s.Percent,
		Message: fmt.Sprintf("%s at %.0f%% of target", s.Op, s.Percent),
	})
	return s, true
}

func (m *Monitor) pmAlert(a Alert) {
	m.logger.Warn("performance alert",
		"bucket", a.Bucket, "op", a.Op, "value", a.Value, "target", a.Target, "percent", a.Percent)

	m.bus.Emit(events.New(events.PerformanceAlert, a.Message).
		WithAttr("bucket", string(a.Bucket)).
		WithAttr("op", a.Op).
		WithAttr("percent", a.Percent))

	m.mu.Lock()
	callbacks := slices.Clone(m.onAlert)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn(a)
	}
}

func pmMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
