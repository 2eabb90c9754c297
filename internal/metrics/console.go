package metrics

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ANSI color codes for console output.
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

// Console renders test lifecycle banners, periodic progress, and the final
// report to a writer. It is purely observational: nothing it prints feeds
// back into scheduling.
type Console struct {
	mu       sync.Mutex
	writer   io.Writer
	useColor bool
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewConsole creates a console reporter. A nil writer defaults to stdout.
func NewConsole(writer io.Writer, useColor bool, interval time.Duration) *Console {
	if writer == nil {
		writer = os.Stdout
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Console{
		writer:   writer,
		useColor: useColor,
		interval: interval,
	}
}

func (c *Console) color(code string) string {
	if !c.useColor {
		return ""
	}
	return code
}

// PrintStartBanner prints the test-start banner with the target host and
// the configured population mix.
func (c *Console) PrintStartBanner(name, host, populationMix string, users int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.writer
	line := strings.Repeat("=", 60)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%s%s\n", c.color(colorBold), line, c.color(colorReset))
	fmt.Fprintf(w, "%sPortal Load Test Starting: %s%s\n", c.color(colorBold), name, c.color(colorReset))
	fmt.Fprintf(w, "%s%s%s\n", c.color(colorBold), line, c.color(colorReset))
	fmt.Fprintf(w, "Target Host:    %s\n", host)
	fmt.Fprintf(w, "Virtual Users:  %d\n", users)
	fmt.Fprintf(w, "Duration:       %s\n", formatDuration(duration))
	fmt.Fprintf(w, "Population Mix: %s\n", populationMix)
	fmt.Fprintf(w, "%s%s%s\n\n", c.color(colorBold), line, c.color(colorReset))
}

// Start begins periodic progress reporting from the collector.
func (c *Console) Start(collector *Collector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh != nil {
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.progressLoop(collector)
}

// Stop halts periodic progress reporting.
func (c *Console) Stop() {
	c.mu.Lock()
	stopCh, doneCh := c.stopCh, c.doneCh
	c.stopCh = nil
	c.doneCh = nil
	c.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
}

func (c *Console) progressLoop(collector *Collector) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.printProgress(collector.Snapshot())
		}
	}
}

func (c *Console) printProgress(snapshot Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "[%s] requests=%d failed=%d skipped=%d p95=%s qps=%.1f\n",
		formatDuration(snapshot.Duration),
		snapshot.TotalRequests,
		snapshot.FailedRequests+snapshot.ErrorRequests,
		snapshot.SkippedActions,
		formatLatency(snapshot.P95Latency),
		snapshot.QPS)
}

// PrintFinalReport prints the test-stop summary: totals, failure counts,
// latency distribution, throughput, and the computed failure rate.
func (c *Console) PrintFinalReport(snapshot Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.writer
	line := strings.Repeat("=", 60)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%s%s\n", c.color(colorBold), line, c.color(colorReset))
	fmt.Fprintf(w, "%sPortal Load Test Completed%s\n", c.color(colorBold), c.color(colorReset))
	fmt.Fprintf(w, "%s%s%s\n\n", c.color(colorBold), line, c.color(colorReset))

	fmt.Fprintf(w, "%s-- Request Statistics --%s\n", c.color(colorCyan), c.color(colorReset))
	fmt.Fprintf(w, "  Total Requests:   %s%d%s\n", c.color(colorBold), snapshot.TotalRequests, c.color(colorReset))
	fmt.Fprintf(w, "  Successful:       %s%d%s\n", c.color(colorGreen), snapshot.SuccessRequests, c.color(colorReset))
	fmt.Fprintf(w, "  Failed (status):  %s%d%s\n", c.color(colorRed), snapshot.FailedRequests, c.color(colorReset))
	fmt.Fprintf(w, "  Failed (network): %s%d%s\n", c.color(colorRed), snapshot.ErrorRequests, c.color(colorReset))
	fmt.Fprintf(w, "  Skipped Actions:  %d\n", snapshot.SkippedActions)
	fmt.Fprintf(w, "  Failure Rate:     %.2f%%\n", snapshot.FailureRate)
	fmt.Fprintf(w, "  Throughput:       %s%.2f req/s%s\n\n", c.color(colorBlue), snapshot.QPS, c.color(colorReset))

	fmt.Fprintf(w, "%s-- Latency Distribution --%s\n", c.color(colorCyan), c.color(colorReset))
	fmt.Fprintf(w, "  Min:    %12s\n", formatLatency(snapshot.MinLatency))
	fmt.Fprintf(w, "  Avg:    %12s\n", formatLatency(snapshot.AvgLatency))
	fmt.Fprintf(w, "  Median: %12s\n", formatLatency(snapshot.P50Latency))
	fmt.Fprintf(w, "  P95:    %12s\n", formatLatency(snapshot.P95Latency))
	fmt.Fprintf(w, "  P99:    %12s\n", formatLatency(snapshot.P99Latency))
	fmt.Fprintf(w, "  Max:    %12s\n\n", formatLatency(snapshot.MaxLatency))

	if len(snapshot.StatusCodes) > 0 {
		fmt.Fprintf(w, "%s-- Status Codes --%s\n", c.color(colorCyan), c.color(colorReset))
		codes := make([]int, 0, len(snapshot.StatusCodes))
		for code := range snapshot.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %d: %d\n", code, snapshot.StatusCodes[code])
		}
		fmt.Fprintln(w)
	}

	if len(snapshot.EndpointStats) > 0 {
		fmt.Fprintf(w, "%s-- Per-Endpoint Statistics --%s\n", c.color(colorCyan), c.color(colorReset))

		names := make([]string, 0, len(snapshot.EndpointStats))
		for name := range snapshot.EndpointStats {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			s := snapshot.EndpointStats[name]
			fmt.Fprintf(w, "  %-24s total=%-6d ok=%-6d failed=%-5d avg=%s\n",
				s.Name, s.TotalRequests, s.SuccessRequests, s.FailedRequests,
				formatLatency(s.AvgLatency))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%s%s%s\n", c.color(colorDim), line, c.color(colorReset))
}

// formatLatency formats a duration for latency display.
func formatLatency(d time.Duration) string {
	switch {
	case d == 0:
		return "-"
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// formatDuration formats a duration for display, trimming sub-second noise.
func formatDuration(d time.Duration) string {
	if d >= time.Second {
		d = d.Round(time.Second)
	}
	return d.String()
}
