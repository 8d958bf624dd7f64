// Package metrics counts live sessions, events, patches and renders and
// exposes them in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the server metrics.
type Metrics struct {
	namespace string

	// Live sessions
	SessionsActive *Gauge
	SessionsTotal  *Counter

	// Client frames and page events
	FramesReceived *CounterVec
	EventErrors    *CounterVec
	EventDuration  *Histogram
	PanicsTotal    *Counter

	// Patches
	PatchesSent *Counter
	PatchBytes  *Histogram

	// Full documents
	DocumentsRendered *Counter
	RenderDuration    *Histogram

	ContentReloads *Counter
}

// NewMetrics creates a metrics set whose names start with namespace.
func NewMetrics(namespace string) *Metrics {
	n := func(name string) string { return namespace + "_" + name }
	return &Metrics{
		namespace: namespace,

		SessionsActive: NewGauge(n("live_sessions_active"), "Open live sessions"),
		SessionsTotal:  NewCounter(n("live_sessions_total"), "Live sessions opened"),

		FramesReceived: NewCounterVec(n("frames_received_total"), "Client frames received", "event"),
		EventErrors:    NewCounterVec(n("event_errors_total"), "Page events that failed", "event"),
		EventDuration:  NewHistogram(n("event_duration_seconds"), "Page event handling time"),
		PanicsTotal:    NewCounter(n("panics_total"), "Panics recovered in component callbacks"),

		PatchesSent: NewCounter(n("patches_sent_total"), "Patch frames sent"),
		PatchBytes:  NewHistogram(n("patch_size_bytes"), "Outer HTML bytes per patch frame"),

		DocumentsRendered: NewCounter(n("documents_rendered_total"), "Full documents served"),
		RenderDuration:    NewHistogram(n("document_render_seconds"), "Full document mount and render time"),

		ContentReloads: NewCounter(n("content_reloads_total"), "Content store reloads"),
	}
}

// Namespace returns the metric name prefix.
func (m *Metrics) Namespace() string {
	return m.namespace
}

// Handler returns an HTTP handler for metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = m.WriteTo(w)
	})
}

// WriteTo writes every metric in the Prometheus text format.
func (m *Metrics) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	writeScalar(cw, "gauge", m.SessionsActive.name, m.SessionsActive.help, m.SessionsActive.Value())
	for _, c := range []*Counter{m.SessionsTotal, m.PanicsTotal, m.PatchesSent, m.DocumentsRendered, m.ContentReloads} {
		writeScalar(cw, "counter", c.name, c.help, c.Value())
	}
	for _, cv := range []*CounterVec{m.FramesReceived, m.EventErrors} {
		writeVec(cw, cv)
	}
	for _, h := range []*Histogram{m.EventDuration, m.PatchBytes, m.RenderDuration} {
		writeSummary(cw, h)
	}
	return cw.n, cw.err
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) printf(format string, args ...any) {
	if cw.err != nil {
		return
	}
	n, err := fmt.Fprintf(cw.w, format, args...)
	cw.n += int64(n)
	cw.err = err
}

func writeScalar(w *countingWriter, kind, name, help string, value float64) {
	w.printf("# HELP %s %s\n# TYPE %s %s\n%s %g\n", name, help, name, kind, name, value)
}

func writeVec(w *countingWriter, cv *CounterVec) {
	w.printf("# HELP %s %s\n# TYPE %s counter\n", cv.name, cv.help, cv.name)
	values := cv.Values()
	labels := make([]string, 0, len(values))
	for l := range values {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		w.printf("%s{%s=%q} %g\n", cv.name, cv.label, l, values[l])
	}
}

func writeSummary(w *countingWriter, h *Histogram) {
	stats := h.Stats()
	w.printf("# HELP %s %s\n# TYPE %s summary\n", h.name, h.help, h.name)
	w.printf("%s_sum %g\n%s_count %d\n", h.name, stats.Sum, h.name, stats.Count)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value int64
}

// NewCounter creates a new counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Value returns the current counter value.
func (c *Counter) Value() float64 {
	return float64(atomic.LoadInt64(&c.value))
}

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value int64
}

// NewGauge creates a new gauge.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

// Set sets the gauge to a value.
func (g *Gauge) Set(value float64) {
	atomic.StoreInt64(&g.value, int64(value))
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	atomic.AddInt64(&g.value, 1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	atomic.AddInt64(&g.value, -1)
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return float64(atomic.LoadInt64(&g.value))
}

// CounterVec is a counter with one label.
type CounterVec struct {
	name   string
	help   string
	label  string
	values map[string]*Counter
	mu     sync.RWMutex
}

// NewCounterVec creates a new counter vector.
func NewCounterVec(name, help, label string) *CounterVec {
	return &CounterVec{
		name:   name,
		help:   help,
		label:  label,
		values: make(map[string]*Counter),
	}
}

// WithLabel returns a counter for the given label value.
func (cv *CounterVec) WithLabel(value string) *Counter {
	cv.mu.RLock()
	c, ok := cv.values[value]
	cv.mu.RUnlock()
	if ok {
		return c
	}

	cv.mu.Lock()
	defer cv.mu.Unlock()
	if c, ok := cv.values[value]; ok {
		return c
	}
	c = NewCounter(cv.name, cv.help)
	cv.values[value] = c
	return c
}

// Inc increments the counter for the given label.
func (cv *CounterVec) Inc(label string) {
	cv.WithLabel(label).Inc()
}

// Values returns all counter values.
func (cv *CounterVec) Values() map[string]float64 {
	cv.mu.RLock()
	defer cv.mu.RUnlock()

	result := make(map[string]float64, len(cv.values))
	for label, counter := range cv.values {
		result[label] = counter.Value()
	}
	return result
}

// Histogram tracks the count, sum and range of observed values.
type Histogram struct {
	name  string
	help  string
	sum   float64
	count int64
	min   float64
	max   float64
	mu    sync.Mutex
}

// NewHistogram creates a new histogram.
func NewHistogram(name, help string) *Histogram {
	return &Histogram{name: name, help: help, min: -1}
}

// Observe records a value.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += value
	h.count++
	if h.min < 0 || value < h.min {
		h.min = value
	}
	if value > h.max {
		h.max = value
	}
}

// ObserveDuration records a duration value.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Timer returns a timer that records the elapsed time when stopped.
func (h *Histogram) Timer() *Timer {
	return &Timer{histogram: h, start: time.Now()}
}

// Stats returns histogram statistics.
func (h *Histogram) Stats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := HistogramStats{
		Count: h.count,
		Sum:   h.sum,
		Min:   h.min,
		Max:   h.max,
	}
	if h.count > 0 {
		stats.Avg = h.sum / float64(h.count)
	}
	return stats
}

// HistogramStats contains histogram statistics.
type HistogramStats struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Avg   float64
}

// Timer tracks operation duration.
type Timer struct {
	histogram *Histogram
	start     time.Time
}

// ObserveDuration records the elapsed time.
func (t *Timer) ObserveDuration() {
	t.histogram.ObserveDuration(time.Since(t.start))
}
