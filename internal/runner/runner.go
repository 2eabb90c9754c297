// Package runner orchestrates a load test: it builds the client, portal
// API, and reporters from the configuration, spawns the virtual-user
// population according to the mix, and drives each user's behavior loop
// until the test duration elapses.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/portal/loadgen/internal/behavior"
	"github.com/example/portal/loadgen/internal/client"
	"github.com/example/portal/loadgen/internal/config"
	"github.com/example/portal/loadgen/internal/metrics"
	"github.com/example/portal/loadgen/internal/portal"
	"github.com/example/portal/loadgen/internal/session"
)

// Errors returned by the runner package.
var (
	// ErrWarmupTimeout is returned when session warmup does not finish in
	// its configured window.
	ErrWarmupTimeout = errors.New("runner: warmup timed out")
)

// Runner executes one load test.
type Runner struct {
	cfg       *config.Config
	client    *client.Client
	api       *portal.API
	collector *metrics.Collector
	console   *metrics.Console
	exporter  *metrics.PrometheusExporter
	mix       *behavior.WeightedSet

	activeUsers atomic.Int64
	out         io.Writer
}

// virtualUser pairs one session with the behavior it runs.
type virtualUser struct {
	sess     *session.Session
	behavior behavior.Behavior
	started  bool
}

// New creates a runner from a validated configuration.
func New(cfg *config.Config) (*Runner, error) {
	httpClient, err := client.New(cfg.Target)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(0)

	recorders := []portal.Recorder{collector}
	var exporter *metrics.PrometheusExporter
	if cfg.Output.PrometheusAddr != "" {
		exporter = metrics.NewPrometheusExporter()
		recorders = append(recorders, exporter)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	}

	r := &Runner{
		cfg:       cfg,
		client:    httpClient,
		api:       portal.NewAPI(httpClient, limiter, recorders...),
		collector: collector,
		console:   metrics.NewConsole(os.Stdout, !cfg.Output.NoColor, cfg.Output.ProgressInterval),
		exporter:  exporter,
		out:       os.Stdout,
	}

	if cfg.Mode == config.ModeAdvanced {
		r.mix, err = behavior.NewMix(cfg.Profiles)
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

// SetOutput redirects console output, primarily for tests.
func (r *Runner) SetOutput(w io.Writer) {
	r.out = w
	r.console = metrics.NewConsole(w, false, r.cfg.Output.ProgressInterval)
}

// Collector exposes the metrics collector.
func (r *Runner) Collector() *metrics.Collector {
	return r.collector
}

// ActiveUsers returns the number of currently running virtual users.
func (r *Runner) ActiveUsers() int {
	return int(r.activeUsers.Load())
}

// Run executes the load test until the configured duration elapses or the
// context is cancelled. It returns an error only for setup failures; a run
// full of failed requests still completes and reports.
func (r *Runner) Run(ctx context.Context) error {
	defer r.client.Close()

	if r.exporter != nil {
		if err := r.exporter.Start(r.cfg.Output.PrometheusAddr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.exporter.Stop(shutdownCtx)
		}()
	}

	r.console.PrintStartBanner(r.cfg.Name, r.client.BaseURL(), r.cfg.PopulationMix(),
		r.cfg.Users, r.cfg.Duration)

	users, err := r.buildUsers()
	if err != nil {
		return err
	}

	if r.cfg.Warmup.Enabled {
		if err := r.warmup(ctx, users); err != nil {
			return err
		}
	}

	r.collector.Start()
	r.console.Start(r.collector)

	testCtx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i, u := range users {
		if i > 0 {
			if !waitFor(testCtx, r.cfg.SpawnInterval) {
				break
			}
		}
		wg.Add(1)
		go func(u *virtualUser) {
			defer wg.Done()
			r.runUser(testCtx, u)
		}(u)
	}
	wg.Wait()

	r.console.Stop()
	r.collector.Stop()

	snapshot := r.collector.Snapshot()
	r.console.PrintFinalReport(snapshot)

	if r.cfg.Output.JSONFile != "" {
		report := metrics.JSONReport{
			Name:       r.cfg.Name,
			Host:       r.client.BaseURL(),
			Mode:       string(r.cfg.Mode),
			Population: r.cfg.PopulationMix(),
			Snapshot:   snapshot,
		}
		if err := metrics.WriteJSONReport(r.cfg.Output.JSONFile, report); err != nil {
			fmt.Fprintf(r.out, "warning: %v\n", err)
		}
	}

	return nil
}

// buildUsers creates the virtual-user population. In advanced mode each
// user's profile is drawn from the weighted population mix; in simple mode
// every user runs the combined task table. Profile names are checked at
// config validation, so behavior construction only fails on programmer
// error.
func (r *Runner) buildUsers() ([]*virtualUser, error) {
	users := make([]*virtualUser, 0, r.cfg.Users)
	for i := 0; i < r.cfg.Users; i++ {
		profile := behavior.ProfileSimple
		if r.cfg.Mode == config.ModeAdvanced {
			profile = r.mix.Pick()
		}

		b, err := behavior.New(profile, r.cfg)
		if err != nil {
			return nil, err
		}

		users = append(users, &virtualUser{
			sess:     session.New(r.api, profile),
			behavior: b,
		})
	}
	return users, nil
}

// warmup establishes every session (register + login) before the
// measurement clock starts.
func (r *Runner) warmup(ctx context.Context, users []*virtualUser) error {
	fmt.Fprintf(r.out, "Warming up %d sessions...\n", len(users))

	warmupCtx, cancel := context.WithTimeout(ctx, r.cfg.Warmup.Timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u *virtualUser) {
			defer wg.Done()
			// Setup failures leave the session unauthenticated; its
			// actions will be reported as skipped.
			_ = u.sess.Start(warmupCtx)
			u.started = true
		}(u)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		fmt.Fprintln(r.out, "Warmup complete.")
		return nil
	case <-warmupCtx.Done():
		<-done
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrWarmupTimeout
	}
}

// runUser drives one virtual user: session setup (unless warmed up), then
// the behavior loop with randomized think time between turns. One user's
// sleep never blocks another; each runs on its own goroutine.
func (r *Runner) runUser(ctx context.Context, u *virtualUser) {
	r.activeUsers.Add(1)
	if r.exporter != nil {
		r.exporter.SetActiveUsers(int(r.activeUsers.Load()))
	}
	defer func() {
		r.activeUsers.Add(-1)
		if r.exporter != nil {
			r.exporter.SetActiveUsers(int(r.activeUsers.Load()))
		}
	}()

	if !u.started {
		_ = u.sess.Start(ctx)
		u.started = true
	}

	for {
		if ctx.Err() != nil {
			return
		}
		_ = u.behavior.Run(ctx, u.sess)
		if !waitFor(ctx, thinkTime(r.cfg.ThinkTime)) {
			return
		}
	}
}

// waitFor waits for d or until the context is cancelled.
// Returns false when the context ended first.
func waitFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
