// Package metrics holds the process-wide counters described in the design notes: the only
// shared mutable state outside the persistence backend, updated atomically.
package metrics

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// TokenUsage captures LLM token counts used to satisfy a request.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens"`
}

// IsZero reports whether usage data is absent.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// Registry is the single process-wide metrics service. All fields are updated with atomic
// operations; no locks are required for correctness.
type Registry struct {
	startedAt time.Time

	requestsTotal     atomic.Int64
	requestErrors     atomic.Int64
	completionsTotal  atomic.Int64
	tokensSpentTotal  atomic.Int64
	filesIngested     atomic.Int64
	chunksEmbedded    atomic.Int64
	toolCallsTotal    atomic.Int64
	summarizerPartial atomic.Int64
}

// New constructs the registry. The HTTP layer does not use it; its /status and /metrics
// routes read the internal/interface/http package's own counters.
func New() *Registry {
	return &Registry{startedAt: time.Now()}
}

func (r *Registry) IncRequests()        { r.requestsTotal.Add(1) }
func (r *Registry) IncRequestErrors()    { r.requestErrors.Add(1) }
func (r *Registry) IncCompletions()      { r.completionsTotal.Add(1) }
func (r *Registry) AddTokensSpent(n int64) { r.tokensSpentTotal.Add(n) }
func (r *Registry) IncFilesIngested()    { r.filesIngested.Add(1) }
func (r *Registry) AddChunksEmbedded(n int64) { r.chunksEmbedded.Add(n) }
func (r *Registry) IncToolCalls()        { r.toolCallsTotal.Add(1) }
func (r *Registry) IncSummarizerPartial() { r.summarizerPartial.Add(1) }

// Uptime returns how long the process has been running.
func (r *Registry) Uptime() time.Duration { return time.Since(r.startedAt) }

// Status is a point-in-time snapshot of process status.
type Status struct {
	UptimeSeconds float64 `json:"uptimeSeconds"`
	MemAllocBytes uint64  `json:"memAllocBytes"`
	MemSysBytes   uint64  `json:"memSysBytes"`
	NumGoroutine  int     `json:"numGoroutine"`
	NumCPU        int     `json:"numCpu"`
}

// Snapshot returns the current process status (uptime, memory, CPU), per spec §6.
func (r *Registry) Snapshot() Status {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Status{
		UptimeSeconds: r.Uptime().Seconds(),
		MemAllocBytes: mem.Alloc,
		MemSysBytes:   mem.Sys,
		NumGoroutine:  runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
	}
}

// Expose renders the counters in Prometheus text exposition format.
// No client library in the example pack imports prometheus/client_golang; this hand-rolled
// formatter is the documented stdlib exception (see DESIGN.md).
func (r *Registry) Expose() string {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var b strings.Builder
	writeGauge := func(name, help string, value float64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n", name, help, name, name, value)
	}
	writeCounter := func(name, help string, value int64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, value)
	}

	writeGauge("gateway_process_uptime_seconds", "Seconds since process start.", r.Uptime().Seconds())
	writeGauge("gateway_process_mem_alloc_bytes", "Bytes of allocated heap memory in use.", float64(mem.Alloc))
	writeGauge("gateway_process_goroutines", "Number of live goroutines.", float64(runtime.NumGoroutine()))
	writeCounter("gateway_requests_total", "Total HTTP requests handled.", r.requestsTotal.Load())
	writeCounter("gateway_request_errors_total", "Total HTTP requests that ended in an error response.", r.requestErrors.Load())
	writeCounter("gateway_completions_total", "Total chat completions served.", r.completionsTotal.Load())
	writeCounter("gateway_tokens_spent_total", "Total tokens spent across all threads.", r.tokensSpentTotal.Load())
	writeCounter("gateway_files_ingested_total", "Total files ingested through the pipeline.", r.filesIngested.Load())
	writeCounter("gateway_chunks_embedded_total", "Total chunks embedded and stored as vectors.", r.chunksEmbedded.Load())
	writeCounter("gateway_tool_calls_total", "Total external enrichment tool invocations.", r.toolCallsTotal.Load())
	writeCounter("gateway_summarizer_partial_total", "Total summarizer calls that returned status=partial.", r.summarizerPartial.Load())
	return b.String()
}
