package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okResult(endpoint string, latency time.Duration) Result {
	return Result{
		Endpoint:   endpoint,
		StatusCode: 200,
		Latency:    latency,
		Class:      ClassOK,
	}
}

// TestFailureRate tests failure rate computation.
func TestFailureRate(t *testing.T) {
	tests := []struct {
		name   string
		total  int64
		failed int64
		want   float64
	}{
		{name: "no requests", total: 0, failed: 0, want: 0},
		{name: "no failures", total: 100, failed: 0, want: 0},
		{name: "two of ten", total: 10, failed: 2, want: 20.0},
		{name: "all failed", total: 5, failed: 5, want: 100.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FailureRate(tt.total, tt.failed), 0.001)
			assert.Equal(t, fmt.Sprintf("%.2f", tt.want), fmt.Sprintf("%.2f", FailureRate(tt.total, tt.failed)))
		})
	}
}

// TestRecordClassification tests per-class counting.
func TestRecordClassification(t *testing.T) {
	c := NewCollector(0)

	c.Record(okResult("login", 10*time.Millisecond))
	c.Record(okResult("login", 20*time.Millisecond))
	c.Record(Result{Endpoint: "submit_application", StatusCode: 500, Class: ClassFailed})
	c.Record(Result{Endpoint: "checkout", Class: ClassError})
	c.Record(Result{Endpoint: "checkout", Class: ClassSkipped})

	assert.Equal(t, int64(4), c.TotalRequests(), "skips must not count as requests")
	assert.Equal(t, int64(2), c.FailedRequests())
	assert.Equal(t, int64(1), c.SkippedActions())

	snap := c.Snapshot()
	assert.Equal(t, int64(4), snap.TotalRequests)
	assert.Equal(t, int64(2), snap.SuccessRequests)
	assert.Equal(t, int64(1), snap.FailedRequests)
	assert.Equal(t, int64(1), snap.ErrorRequests)
	assert.Equal(t, int64(1), snap.SkippedActions)
	assert.InDelta(t, 50.0, snap.FailureRate, 0.001)
}

// TestSnapshotStatusCodes tests status code accounting. Transport errors
// carry no code and must not appear.
func TestSnapshotStatusCodes(t *testing.T) {
	c := NewCollector(0)

	c.Record(okResult("login", time.Millisecond))
	c.Record(Result{Endpoint: "register", StatusCode: 201, Class: ClassOK})
	c.Record(Result{Endpoint: "register", StatusCode: 409, Class: ClassFailed})
	c.Record(Result{Endpoint: "login", Class: ClassError})

	snap := c.Snapshot()
	assert.Equal(t, map[int]int64{200: 1, 201: 1, 409: 1}, snap.StatusCodes)
}

// TestSnapshotLatencyStats tests the latency distribution figures.
func TestSnapshotLatencyStats(t *testing.T) {
	c := NewCollector(0)
	for i := 1; i <= 100; i++ {
		c.Record(okResult("get_application", time.Duration(i)*time.Millisecond))
	}

	snap := c.Snapshot()
	assert.Equal(t, time.Millisecond, snap.MinLatency)
	assert.Equal(t, 100*time.Millisecond, snap.MaxLatency)
	assert.Equal(t, 50*time.Millisecond, snap.P50Latency)
	assert.Equal(t, 95*time.Millisecond, snap.P95Latency)
	assert.Equal(t, 99*time.Millisecond, snap.P99Latency)
	assert.InDelta(t, float64(50500*time.Microsecond), float64(snap.AvgLatency), float64(time.Millisecond))
}

// TestSnapshotEmpty tests the zero-traffic snapshot.
func TestSnapshotEmpty(t *testing.T) {
	c := NewCollector(0)
	snap := c.Snapshot()

	assert.Zero(t, snap.TotalRequests)
	assert.Zero(t, snap.FailureRate)
	assert.Zero(t, snap.MinLatency)
	assert.Zero(t, snap.QPS)
	assert.Empty(t, snap.StatusCodes)
	assert.Empty(t, snap.EndpointStats)
}

// TestEndpointStats tests the per-endpoint breakdown.
func TestEndpointStats(t *testing.T) {
	c := NewCollector(0)

	c.Record(okResult("login", 10*time.Millisecond))
	c.Record(okResult("login", 30*time.Millisecond))
	c.Record(Result{Endpoint: "login", StatusCode: 401, Latency: 20 * time.Millisecond, Class: ClassFailed})
	c.Record(okResult("checkout", 5*time.Millisecond))

	snap := c.Snapshot()
	require.Contains(t, snap.EndpointStats, "login")
	require.Contains(t, snap.EndpointStats, "checkout")

	login := snap.EndpointStats["login"]
	assert.Equal(t, int64(3), login.TotalRequests)
	assert.Equal(t, int64(2), login.SuccessRequests)
	assert.Equal(t, int64(1), login.FailedRequests)
	assert.Equal(t, 10*time.Millisecond, login.MinLatency)
	assert.Equal(t, 30*time.Millisecond, login.MaxLatency)
	assert.Equal(t, 20*time.Millisecond, login.AvgLatency)
	assert.InDelta(t, 33.33, login.FailureRate, 0.01)
}

// TestLatencyReservoirBound tests that the sample reservoir stays bounded.
func TestLatencyReservoirBound(t *testing.T) {
	c := NewCollector(10)
	for i := 0; i < 100; i++ {
		c.Record(okResult("login", time.Millisecond))
	}

	assert.Equal(t, int64(100), c.TotalRequests())
	c.latencyMu.RLock()
	assert.Len(t, c.latencies, 10)
	c.latencyMu.RUnlock()
}

// TestConcurrentRecord tests that concurrent recording loses no counts.
func TestConcurrentRecord(t *testing.T) {
	c := NewCollector(0)

	const goroutines = 20
	const perGoroutine = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				c.Record(okResult("submit_application", time.Millisecond))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*perGoroutine), c.TotalRequests())
}

// TestReset tests that Reset clears every counter.
func TestReset(t *testing.T) {
	c := NewCollector(0)
	c.Start()
	c.Record(okResult("login", time.Millisecond))
	c.Record(Result{Endpoint: "checkout", Class: ClassSkipped})
	c.Stop()

	c.Reset()

	assert.Zero(t, c.TotalRequests())
	assert.Zero(t, c.SkippedActions())
	snap := c.Snapshot()
	assert.Zero(t, snap.Duration)
	assert.Empty(t, snap.EndpointStats)
}

// TestPercentileIndex tests index selection on small sample sets.
func TestPercentileIndex(t *testing.T) {
	assert.Equal(t, 0, percentileIndex(0, 0.95))
	assert.Equal(t, 0, percentileIndex(1, 0.50))
	assert.Equal(t, 0, percentileIndex(1, 0.99))
	assert.Equal(t, 49, percentileIndex(100, 0.50))
	assert.Equal(t, 94, percentileIndex(100, 0.95))
	assert.Equal(t, 98, percentileIndex(100, 0.99))
}
