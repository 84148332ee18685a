package api

import (
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"repochat/internal/version"
)

// MetricsCollector collects counters and exposes them in Prometheus text format.
type MetricsCollector struct {
	requestsTotal *Counter
	clonesTotal   *Counter
	queriesTotal  *Counter
	errorsTotal   *Counter

	cloneDuration *Histogram
	queryDuration *Histogram

	sessions    *Gauge
	goroutines  *Gauge
	memoryAlloc *Gauge

	startTime time.Time
}

// Counter is a monotonically increasing counter
type Counter struct {
	name   string
	help   string
	labels []string
	values sync.Map // map[string]*uint64
}

// Histogram tracks distributions of values
type Histogram struct {
	name    string
	help    string
	labels  []string
	buckets []float64
	values  sync.Map // map[string]*histogramValue
}

type histogramValue struct {
	mu      sync.Mutex
	sum     float64
	count   uint64
	buckets []uint64
}

// Gauge is a metric that can go up and down
type Gauge struct {
	name   string
	help   string
	labels []string
	values sync.Map // map[string]*float64
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: &Counter{
			name:   "repochat_http_requests_total",
			help:   "Total number of HTTP requests",
			labels: []string{"method", "status"},
		},
		clonesTotal: &Counter{
			name:   "repochat_clones_total",
			help:   "Total number of synchronous repository ingestions",
			labels: []string{"outcome"},
		},
		queriesTotal: &Counter{
			name:   "repochat_queries_total",
			help:   "Total number of questions answered or failed",
			labels: []string{"outcome"},
		},
		errorsTotal: &Counter{
			name:   "repochat_errors_total",
			help:   "Total number of failed requests by error code",
			labels: []string{"code"},
		},
		cloneDuration: &Histogram{
			name:    "repochat_clone_duration_seconds",
			help:    "Duration of repository ingestion in seconds",
			labels:  []string{"outcome"},
			buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		queryDuration: &Histogram{
			name:    "repochat_query_duration_seconds",
			help:    "Duration of question answering in seconds",
			labels:  []string{"outcome"},
			buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		sessions: &Gauge{
			name: "repochat_sessions",
			help: "Number of live sessions",
		},
		goroutines: &Gauge{
			name: "repochat_goroutines",
			help: "Number of goroutines",
		},
		memoryAlloc: &Gauge{
			name: "repochat_memory_alloc_bytes",
			help: "Allocated memory in bytes",
		},
		startTime: time.Now(),
	}
}

// RecordRequest counts one HTTP request.
func (m *MetricsCollector) RecordRequest(method, status string) {
	m.requestsTotal.Inc(method, status)
}

// RecordClone records a synchronous ingestion.
func (m *MetricsCollector) RecordClone(outcome string, duration time.Duration) {
	m.clonesTotal.Inc(outcome)
	m.cloneDuration.Observe(duration.Seconds(), outcome)
}

// RecordQuery records one question.
func (m *MetricsCollector) RecordQuery(outcome string, duration time.Duration) {
	m.queriesTotal.Inc(outcome)
	m.queryDuration.Observe(duration.Seconds(), outcome)
}

// RecordError counts a failed request by error code.
func (m *MetricsCollector) RecordError(code string) {
	m.errorsTotal.Inc(code)
}

// SetSessions sets the live session count.
func (m *MetricsCollector) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// WritePrometheus writes metrics in Prometheus text format
func (m *MetricsCollector) WritePrometheus(w io.Writer) {
	m.goroutines.Set(float64(runtime.NumGoroutine()))
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.memoryAlloc.Set(float64(memStats.Alloc))

	fmt.Fprintf(w, "# HELP repochat_info Build information\n")
	fmt.Fprintf(w, "# TYPE repochat_info gauge\n")
	fmt.Fprintf(w, "repochat_info{version=%q} 1\n\n", version.Version)

	fmt.Fprintf(w, "# HELP repochat_uptime_seconds Time since the server started\n")
	fmt.Fprintf(w, "# TYPE repochat_uptime_seconds counter\n")
	fmt.Fprintf(w, "repochat_uptime_seconds %.3f\n\n", time.Since(m.startTime).Seconds())

	for _, c := range []*Counter{m.requestsTotal, m.clonesTotal, m.queriesTotal, m.errorsTotal} {
		c.write(w)
	}
	for _, h := range []*Histogram{m.cloneDuration, m.queryDuration} {
		h.write(w)
	}
	for _, g := range []*Gauge{m.sessions, m.goroutines, m.memoryAlloc} {
		g.write(w)
	}
}

// handleMetrics handles GET /metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	s.metrics.SetSessions(len(s.engine.Sessions()))
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	s.metrics.WritePrometheus(w)
}

// Inc adds one to the series for labelValues.
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add adds delta to the series for labelValues.
func (c *Counter) Add(delta uint64, labelValues ...string) {
	key := labelsToKey(c.labels, labelValues)
	val, _ := c.values.LoadOrStore(key, new(uint64))
	atomic.AddUint64(val.(*uint64), delta)
}

func (c *Counter) write(w io.Writer) {
	fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
	fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
	for _, key := range sortedKeys(&c.values) {
		val, _ := c.values.Load(key)
		fmt.Fprintf(w, "%s%s %d\n", c.name, key, atomic.LoadUint64(val.(*uint64)))
	}
	fmt.Fprintln(w)
}

// Observe records value in the series for labelValues.
func (h *Histogram) Observe(value float64, labelValues ...string) {
	key := labelsToKey(h.labels, labelValues)
	val, _ := h.values.LoadOrStore(key, &histogramValue{
		buckets: make([]uint64, len(h.buckets)+1), // +1 for +Inf
	})
	hv := val.(*histogramValue)

	hv.mu.Lock()
	defer hv.mu.Unlock()
	hv.sum += value
	hv.count++

	idx := sort.SearchFloat64s(h.buckets, value)
	hv.buckets[idx]++
}

func (h *Histogram) write(w io.Writer) {
	fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)

	for _, key := range sortedKeys(&h.values) {
		val, _ := h.values.Load(key)
		hv := val.(*histogramValue)

		hv.mu.Lock()
		cumulative := uint64(0)
		for i, bound := range h.buckets {
			cumulative += hv.buckets[i]
			fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLabel(key, "le", fmt.Sprintf("%g", bound)), cumulative)
		}
		cumulative += hv.buckets[len(h.buckets)]
		fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLabel(key, "le", "+Inf"), cumulative)
		fmt.Fprintf(w, "%s_sum%s %.6f\n", h.name, key, hv.sum)
		fmt.Fprintf(w, "%s_count%s %d\n", h.name, key, hv.count)
		hv.mu.Unlock()
	}
	fmt.Fprintln(w)
}

// Set replaces the series for labelValues.
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.values.Store(labelsToKey(g.labels, labelValues), &value)
}

func (g *Gauge) write(w io.Writer) {
	fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", g.name)
	for _, key := range sortedKeys(&g.values) {
		val, _ := g.values.Load(key)
		fmt.Fprintf(w, "%s%s %g\n", g.name, key, *val.(*float64))
	}
	fmt.Fprintln(w)
}

func labelsToKey(labels, values []string) string {
	if len(labels) == 0 || len(values) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for i, label := range labels {
		if i < len(values) {
			pairs = append(pairs, fmt.Sprintf("%s=%q", label, values[i]))
		}
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// withLabel appends name=value to a rendered label set.
func withLabel(key, name, value string) string {
	pair := fmt.Sprintf("%s=%q", name, value)
	if key == "" {
		return "{" + pair + "}"
	}
	return key[:len(key)-1] + "," + pair + "}"
}

func sortedKeys(m *sync.Map) []string {
	var keys []string
	m.Range(func(key, _ interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}
