// Package metrics provides a lightweight, Prometheus-compatible collector
// for assistbot. It outputs text/plain in Prometheus exposition format
// without requiring the heavy prometheus/client_golang dependency.
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

// Collector is the global metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates named counters.
type MetricsCollector struct {
	counters  sync.Map // name -> *Counter
	startTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// GetCounter returns (creating if needed) the counter with the given name.
func (m *MetricsCollector) GetCounter(name, help string) *Counter {
	if v, ok := m.counters.Load(name); ok {
		return v.(*Counter)
	}
	c := &Counter{name: name, help: help}
	actual, _ := m.counters.LoadOrStore(name, c)
	return actual.(*Counter)
}

// Expose renders all metrics in Prometheus exposition format.
func (m *MetricsCollector) Expose() string {
	var names []string
	m.counters.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		v, _ := m.counters.Load(name)
		c := v.(*Counter)
		if c.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", name, c.help)
		}
		fmt.Fprintf(&b, "# TYPE %s counter\n", name)
		fmt.Fprintf(&b, "%s %d\n", name, c.Value())
	}
	fmt.Fprintf(&b, "# TYPE assistbot_uptime_seconds gauge\n")
	fmt.Fprintf(&b, "assistbot_uptime_seconds %.0f\n", time.Since(m.startTime).Seconds())
	return b.String()
}

// Handler serves the exposition text over HTTP.
func (m *MetricsCollector) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(rw, m.Expose())
	}
}
