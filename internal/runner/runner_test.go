package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/portal/loadgen/internal/config"
	"github.com/example/portal/loadgen/internal/metrics"
)

// newPortalServer serves a minimal healthy portal backend.
func newPortalServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/auth/register":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		case r.URL.Path == "/auth/login":
			_, _ = w.Write([]byte(`{"access_token":"tok1"}`))
		case r.URL.Path == "/applications" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"app1"}`))
		case strings.HasPrefix(r.URL.Path, "/applications/"):
			_, _ = w.Write([]byte(`{"status":"pending"}`))
		case r.URL.Path == "/payments/checkout":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// shortConfig returns a configuration sized for a sub-second test run.
func shortConfig(baseURL string) *config.Config {
	cfg := &config.Config{Target: config.TargetConfig{BaseURL: baseURL}}
	cfg.ApplyDefaults()

	cfg.Name = "runner-test"
	cfg.Duration = 400 * time.Millisecond
	cfg.Users = 3
	cfg.SpawnInterval = time.Millisecond
	cfg.ThinkTime = config.ThinkTimeConfig{Min: time.Millisecond, Max: 2 * time.Millisecond, Distribution: "uniform"}
	cfg.TimeUnit = time.Millisecond
	return cfg
}

// TestRunSimpleMode tests a short simple-mode run end to end.
func TestRunSimpleMode(t *testing.T) {
	server := newPortalServer(t)

	cfg := shortConfig(server.URL)
	cfg.Mode = config.ModeSimple
	require.NoError(t, cfg.Validate())

	r, err := New(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	r.SetOutput(&buf)

	require.NoError(t, r.Run(context.Background()))

	snap := r.Collector().Snapshot()
	assert.Greater(t, snap.TotalRequests, int64(0))
	assert.Zero(t, snap.ErrorRequests)
	assert.Zero(t, r.ActiveUsers(), "all users must have drained")

	out := buf.String()
	assert.Contains(t, out, "Portal Load Test Starting: runner-test")
	assert.Contains(t, out, "Population Mix: simple (100%)")
	assert.Contains(t, out, "Portal Load Test Completed")
}

// TestRunAdvancedModeWithWarmupAndReport tests the advanced mix with
// warmup enabled and a JSON report written at the end.
func TestRunAdvancedModeWithWarmupAndReport(t *testing.T) {
	server := newPortalServer(t)

	reportPath := filepath.Join(t.TempDir(), "report.json")
	cfg := shortConfig(server.URL)
	cfg.Warmup.Enabled = true
	cfg.Warmup.Timeout = 5 * time.Second
	cfg.Output.JSONFile = reportPath
	require.NoError(t, cfg.Validate())

	r, err := New(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	r.SetOutput(&buf)

	require.NoError(t, r.Run(context.Background()))

	assert.Contains(t, buf.String(), "Warmup complete.")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var report metrics.JSONReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "runner-test", report.Name)
	assert.Equal(t, "advanced", report.Mode)
	assert.Greater(t, report.Snapshot.TotalRequests, int64(0))
}

// TestRunCancelledContext tests that cancellation ends the run early and
// still produces a report.
func TestRunCancelledContext(t *testing.T) {
	server := newPortalServer(t)

	cfg := shortConfig(server.URL)
	cfg.Duration = time.Hour
	require.NoError(t, cfg.Validate())

	r, err := New(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	r.SetOutput(&buf)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, r.Run(ctx))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, buf.String(), "Portal Load Test Completed")
}

// TestRunWarmupTimeout tests that a stalled backend fails warmup with a
// typed error.
func TestRunWarmupTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	cfg := shortConfig(server.URL)
	cfg.Warmup.Enabled = true
	cfg.Warmup.Timeout = 50 * time.Millisecond
	require.NoError(t, cfg.Validate())

	r, err := New(cfg)
	require.NoError(t, err)
	r.SetOutput(&bytes.Buffer{})

	err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrWarmupTimeout)
}

// TestRunUnreachableTarget tests that a run against a dead host completes
// and reports network failures rather than aborting.
func TestRunUnreachableTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	cfg := shortConfig(server.URL)
	cfg.Duration = 200 * time.Millisecond
	cfg.Users = 2
	require.NoError(t, cfg.Validate())

	r, err := New(cfg)
	require.NoError(t, err)
	r.SetOutput(&bytes.Buffer{})

	require.NoError(t, r.Run(context.Background()))
	snap := r.Collector().Snapshot()
	assert.Greater(t, snap.ErrorRequests, int64(0))
	assert.InDelta(t, 100.0, snap.FailureRate, 0.001)
}

// TestBuildUsersPopulation tests that the population respects the mode.
func TestBuildUsersPopulation(t *testing.T) {
	server := newPortalServer(t)

	cfg := shortConfig(server.URL)
	cfg.Users = 40
	cfg.Profiles = []config.ProfileConfig{{Name: "normal", Weight: 1}}
	require.NoError(t, cfg.Validate())

	r, err := New(cfg)
	require.NoError(t, err)

	users, err := r.buildUsers()
	require.NoError(t, err)
	require.Len(t, users, 40)
	for _, u := range users {
		assert.Equal(t, "normal", u.sess.Profile)
		assert.Equal(t, "normal", u.behavior.Name())
	}
}

// TestMistypedProfileRejected tests that a profile typo is caught by
// validation instead of silently running a different behavior.
func TestMistypedProfileRejected(t *testing.T) {
	cfg := shortConfig("http://localhost:3000")
	cfg.Profiles = []config.ProfileConfig{{Name: "statuschecker", Weight: 1}}
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
}

// TestWaitFor tests context-aware waiting.
func TestWaitFor(t *testing.T) {
	assert.True(t, waitFor(context.Background(), 0))
	assert.True(t, waitFor(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, waitFor(ctx, 0))
	assert.False(t, waitFor(ctx, time.Minute))
}
