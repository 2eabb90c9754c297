// Package metrics provides metrics collection and reporting for the load
// generator. The collector owns the only process-wide mutable counters in
// the tool; everything else is private per virtual user.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Class classifies the outcome of one portal action.
type Class string

// Outcome classes.
const (
	// ClassOK means the action completed with its expected status code.
	ClassOK Class = "ok"

	// ClassFailed means the action completed but the status code did not
	// match expectations.
	ClassFailed Class = "failed"

	// ClassError means a transport-level error occurred and no status code
	// was observed.
	ClassError Class = "error"

	// ClassSkipped means the action was not attempted because its
	// preconditions (auth token, recorded application id) were unmet.
	ClassSkipped Class = "skipped"
)

// Result represents the result of a single portal action.
type Result struct {
	Endpoint   string
	Method     string
	Path       string
	StatusCode int
	Latency    time.Duration
	Class      Class
	Message    string
}

// Collector aggregates load test metrics.
//
// Thread safety: safe for concurrent use. Counters are atomic increments;
// per-request ordering across goroutines is not guaranteed and does not
// need to be.
type Collector struct {
	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	errorRequests   atomic.Int64
	skippedActions  atomic.Int64

	// latencies stores nanosecond samples for percentile calculation,
	// bounded at maxLatencies.
	latencies    []int64
	latencyMu    sync.RWMutex
	maxLatencies int

	endpointStats   map[string]*EndpointStats
	endpointStatsMu sync.RWMutex

	statusCodes   map[int]int64
	statusCodesMu sync.RWMutex

	mu        sync.RWMutex
	startTime time.Time
	endTime   time.Time
}

// EndpointStats holds statistics for a single endpoint.
type EndpointStats struct {
	mu sync.Mutex

	Name            string
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalLatencyNs  int64
	MinLatency      time.Duration
	MaxLatency      time.Duration
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	TotalRequests   int64 `json:"totalRequests"`
	SuccessRequests int64 `json:"successRequests"`
	FailedRequests  int64 `json:"failedRequests"`
	ErrorRequests   int64 `json:"errorRequests"`
	SkippedActions  int64 `json:"skippedActions"`

	MinLatency time.Duration `json:"minLatency"`
	AvgLatency time.Duration `json:"avgLatency"`
	P50Latency time.Duration `json:"p50Latency"`
	P95Latency time.Duration `json:"p95Latency"`
	P99Latency time.Duration `json:"p99Latency"`
	MaxLatency time.Duration `json:"maxLatency"`

	// FailureRate is the percentage of requests that failed (status
	// mismatch or transport error). 0 when no requests were made.
	FailureRate float64 `json:"failureRate"`

	// QPS is the observed request throughput.
	QPS float64 `json:"qps"`

	StatusCodes map[int]int64 `json:"statusCodes"`

	EndpointStats map[string]*EndpointSnapshot `json:"endpointStats"`
}

// EndpointSnapshot is a per-endpoint view of the statistics.
type EndpointSnapshot struct {
	Name            string        `json:"name"`
	TotalRequests   int64         `json:"totalRequests"`
	SuccessRequests int64         `json:"successRequests"`
	FailedRequests  int64         `json:"failedRequests"`
	MinLatency      time.Duration `json:"minLatency"`
	AvgLatency      time.Duration `json:"avgLatency"`
	MaxLatency      time.Duration `json:"maxLatency"`
	FailureRate     float64       `json:"failureRate"`
}

const defaultMaxLatencies = 100000

// NewCollector creates a new metrics collector.
// maxLatencies bounds the latency reservoir; <= 0 selects the default.
func NewCollector(maxLatencies int) *Collector {
	if maxLatencies <= 0 {
		maxLatencies = defaultMaxLatencies
	}
	return &Collector{
		latencies:     make([]int64, 0, maxLatencies),
		maxLatencies:  maxLatencies,
		endpointStats: make(map[string]*EndpointStats),
		statusCodes:   make(map[int]int64),
	}
}

// Start marks the beginning of metrics collection.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Stop marks the end of metrics collection.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// Record records one action result.
func (c *Collector) Record(result Result) {
	if result.Class == ClassSkipped {
		c.skippedActions.Add(1)
		return
	}

	c.totalRequests.Add(1)
	switch result.Class {
	case ClassOK:
		c.successRequests.Add(1)
	case ClassFailed:
		c.failedRequests.Add(1)
	case ClassError:
		c.errorRequests.Add(1)
	}

	c.recordLatency(result.Latency.Nanoseconds())

	if result.StatusCode > 0 {
		c.statusCodesMu.Lock()
		c.statusCodes[result.StatusCode]++
		c.statusCodesMu.Unlock()
	}

	if result.Endpoint != "" {
		c.recordEndpointResult(result)
	}
}

// recordLatency appends a latency sample, dropping samples once the
// reservoir is full.
func (c *Collector) recordLatency(latencyNs int64) {
	c.latencyMu.Lock()
	defer c.latencyMu.Unlock()
	if len(c.latencies) < c.maxLatencies {
		c.latencies = append(c.latencies, latencyNs)
	}
}

func (c *Collector) recordEndpointResult(result Result) {
	c.endpointStatsMu.Lock()
	stats, ok := c.endpointStats[result.Endpoint]
	if !ok {
		stats = &EndpointStats{Name: result.Endpoint}
		c.endpointStats[result.Endpoint] = stats
	}
	c.endpointStatsMu.Unlock()

	stats.mu.Lock()
	defer stats.mu.Unlock()
	stats.TotalRequests++
	if result.Class == ClassOK {
		stats.SuccessRequests++
	} else {
		stats.FailedRequests++
	}
	stats.TotalLatencyNs += result.Latency.Nanoseconds()
	if stats.MinLatency == 0 || result.Latency < stats.MinLatency {
		stats.MinLatency = result.Latency
	}
	if result.Latency > stats.MaxLatency {
		stats.MaxLatency = result.Latency
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	start := c.startTime
	end := c.endTime
	c.mu.RUnlock()

	duration := time.Duration(0)
	switch {
	case !start.IsZero() && !end.IsZero():
		duration = end.Sub(start)
	case !start.IsZero():
		duration = time.Since(start)
	}

	total := c.totalRequests.Load()
	failed := c.failedRequests.Load() + c.errorRequests.Load()

	snapshot := Snapshot{
		StartTime:       start,
		EndTime:         end,
		Duration:        duration,
		TotalRequests:   total,
		SuccessRequests: c.successRequests.Load(),
		FailedRequests:  c.failedRequests.Load(),
		ErrorRequests:   c.errorRequests.Load(),
		SkippedActions:  c.skippedActions.Load(),
		FailureRate:     FailureRate(total, failed),
		StatusCodes:     c.copyStatusCodes(),
		EndpointStats:   c.copyEndpointStats(),
	}

	snapshot.MinLatency, snapshot.AvgLatency, snapshot.P50Latency,
		snapshot.P95Latency, snapshot.P99Latency, snapshot.MaxLatency = c.latencyStats()

	if duration > 0 {
		snapshot.QPS = float64(total) / duration.Seconds()
	}

	return snapshot
}

// FailureRate returns the failure percentage, guarding against division by
// zero: 0 total requests reports a 0 failure rate.
func FailureRate(total, failed int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total) * 100
}

// latencyStats computes the latency distribution from the reservoir.
func (c *Collector) latencyStats() (min, avg, p50, p95, p99, max time.Duration) {
	c.latencyMu.RLock()
	samples := make([]int64, len(c.latencies))
	copy(samples, c.latencies)
	c.latencyMu.RUnlock()

	if len(samples) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	slices.Sort(samples)

	var sum int64
	for _, s := range samples {
		sum += s
	}

	n := len(samples)
	min = time.Duration(samples[0])
	max = time.Duration(samples[n-1])
	avg = time.Duration(sum / int64(n))
	p50 = time.Duration(samples[percentileIndex(n, 0.50)])
	p95 = time.Duration(samples[percentileIndex(n, 0.95)])
	p99 = time.Duration(samples[percentileIndex(n, 0.99)])
	return min, avg, p50, p95, p99, max
}

// percentileIndex returns the index of the percentile value in a sorted
// sample set of size n.
func percentileIndex(n int, percentile float64) int {
	if n == 0 {
		return 0
	}
	idx := int(float64(n)*percentile) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func (c *Collector) copyStatusCodes() map[int]int64 {
	c.statusCodesMu.RLock()
	defer c.statusCodesMu.RUnlock()

	codes := make(map[int]int64, len(c.statusCodes))
	for code, count := range c.statusCodes {
		codes[code] = count
	}
	return codes
}

func (c *Collector) copyEndpointStats() map[string]*EndpointSnapshot {
	c.endpointStatsMu.RLock()
	defer c.endpointStatsMu.RUnlock()

	out := make(map[string]*EndpointSnapshot, len(c.endpointStats))
	for name, stats := range c.endpointStats {
		stats.mu.Lock()
		snap := &EndpointSnapshot{
			Name:            stats.Name,
			TotalRequests:   stats.TotalRequests,
			SuccessRequests: stats.SuccessRequests,
			FailedRequests:  stats.FailedRequests,
			MinLatency:      stats.MinLatency,
			MaxLatency:      stats.MaxLatency,
			FailureRate:     FailureRate(stats.TotalRequests, stats.FailedRequests),
		}
		if stats.TotalRequests > 0 {
			snap.AvgLatency = time.Duration(stats.TotalLatencyNs / stats.TotalRequests)
		}
		stats.mu.Unlock()
		out[name] = snap
	}
	return out
}

// TotalRequests returns the total request count so far.
func (c *Collector) TotalRequests() int64 {
	return c.totalRequests.Load()
}

// FailedRequests returns the count of failed plus errored requests.
func (c *Collector) FailedRequests() int64 {
	return c.failedRequests.Load() + c.errorRequests.Load()
}

// SkippedActions returns the count of actions skipped on unmet preconditions.
func (c *Collector) SkippedActions() int64 {
	return c.skippedActions.Load()
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.totalRequests.Store(0)
	c.successRequests.Store(0)
	c.failedRequests.Store(0)
	c.errorRequests.Store(0)
	c.skippedActions.Store(0)

	c.latencyMu.Lock()
	c.latencies = c.latencies[:0]
	c.latencyMu.Unlock()

	c.endpointStatsMu.Lock()
	c.endpointStats = make(map[string]*EndpointStats)
	c.endpointStatsMu.Unlock()

	c.statusCodesMu.Lock()
	c.statusCodes = make(map[int]int64)
	c.statusCodesMu.Unlock()

	c.mu.Lock()
	c.startTime = time.Time{}
	c.endTime = time.Time{}
	c.mu.Unlock()
}
