// Package metrics exposes pipeline counters in Prometheus text format
// without pulling in the full client library.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide metrics registry.
var Collector = NewCollector()

// MetricsCollector aggregates counters and histograms.
type MetricsCollector struct {
	mu         sync.Mutex
	counters   []*Counter
	histograms []*Histogram
	startTime  time.Time
}

func NewCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Histogram tracks a value distribution over fixed buckets.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	bounds  []float64
	buckets []int64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.buckets[i]++
		}
	}
}

// Counter registers (or returns) a counter with the given name.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ctr := range c.counters {
		if ctr.name == name {
			return ctr
		}
	}
	ctr := &Counter{name: name, help: help}
	c.counters = append(c.counters, ctr)
	return ctr
}

// Histogram registers (or returns) a histogram with the given buckets.
func (c *MetricsCollector) Histogram(name, help string, bounds []float64) *Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.histograms {
		if h.name == name {
			return h
		}
	}
	sort.Float64s(bounds)
	h := &Histogram{name: name, help: help, bounds: bounds, buckets: make([]int64, len(bounds))}
	c.histograms = append(c.histograms, h)
	return h
}

// Handler renders the registry in Prometheus exposition format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.render())
	}
}

func (c *MetricsCollector) render() string {
	c.mu.Lock()
	counters := append([]*Counter(nil), c.counters...)
	histograms := append([]*Histogram(nil), c.histograms...)
	c.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# HELP wechatbridge_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE wechatbridge_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "wechatbridge_uptime_seconds %d\n", int64(time.Since(c.startTime).Seconds()))

	for _, ctr := range counters {
		fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
		fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
		fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
	}

	for _, h := range histograms {
		h.mu.Lock()
		fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
		fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
		for i, le := range h.bounds {
			fmt.Fprintf(&sb, "%s_bucket{le=\"%g\"} %d\n", h.name, le, h.buckets[i])
		}
		fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
		fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
		fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
		h.mu.Unlock()
	}

	return sb.String()
}

// Pipeline metrics used across the bridge.
var (
	EventsTotal      = Collector.Counter("wechatbridge_events_total", "Session events received")
	FilteredTotal    = Collector.Counter("wechatbridge_filtered_total", "Messages dropped by the type filter")
	UploadsTotal     = Collector.Counter("wechatbridge_uploads_total", "Attachment uploads that succeeded")
	UploadFailures   = Collector.Counter("wechatbridge_upload_failures_total", "Attachment uploads that exhausted retries")
	DeliveriesTotal  = Collector.Counter("wechatbridge_deliveries_total", "Envelopes delivered to the collector")
	DeliveryFailures = Collector.Counter("wechatbridge_delivery_failures_total", "Envelope deliveries that exhausted retries")
	ErrorEnvelopes   = Collector.Counter("wechatbridge_error_envelopes_total", "Error envelopes dispatched")

	DeliveryLatency = Collector.Histogram("wechatbridge_delivery_latency_seconds",
		"Webhook delivery latency in seconds", []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
)
