package http

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// metrics holds the process-wide atomic counters exposed by /api/v1/metrics and
// /api/v1/status. No in-process mutable singleton besides this is required for
// correctness; every increment MUST be atomic per spec §5.
type metrics struct {
	startedAt     time.Time
	totalRequests atomic.Int64
	bytesIngested atomic.Int64
}

func newMetrics() *metrics {
	return &metrics{startedAt: time.Now()}
}

func (m *metrics) recordRequest() {
	m.totalRequests.Add(1)
}

func (m *metrics) recordBytesIngested(n int64) {
	m.bytesIngested.Add(n)
}

func (m *metrics) uptime() time.Duration {
	return time.Since(m.startedAt)
}

// prometheusExposition renders the gauges in Prometheus' plain-text exposition format.
func (m *metrics) prometheusExposition() string {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return fmt.Sprintf(
		"# HELP gateway_requests_total Total HTTP requests served.\n"+
			"# TYPE gateway_requests_total counter\n"+
			"gateway_requests_total %d\n"+
			"# HELP gateway_bytes_ingested_total Total bytes accepted via file uploads.\n"+
			"# TYPE gateway_bytes_ingested_total counter\n"+
			"gateway_bytes_ingested_total %d\n"+
			"# HELP gateway_uptime_seconds Seconds since process start.\n"+
			"# TYPE gateway_uptime_seconds gauge\n"+
			"gateway_uptime_seconds %.0f\n"+
			"# HELP gateway_memory_bytes_in_use Heap bytes currently in use.\n"+
			"# TYPE gateway_memory_bytes_in_use gauge\n"+
			"gateway_memory_bytes_in_use %d\n",
		m.totalRequests.Load(),
		m.bytesIngested.Load(),
		m.uptime().Seconds(),
		memStats.HeapInuse,
	)
}
