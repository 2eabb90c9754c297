// Package main provides the CLI entry point for the portal load generator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/portal/loadgen/internal/apispec"
	"github.com/example/portal/loadgen/internal/config"
	"github.com/example/portal/loadgen/internal/portal"
	"github.com/example/portal/loadgen/internal/runner"
)

// Version information (populated at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// CLI flags.
var (
	configPath     string
	host           string
	duration       time.Duration
	users          int
	mode           string
	openapiPath    string
	validate       bool
	dryRun         bool
	list           bool
	showVersion    bool
	verbose        bool
	noColor        bool
	prometheusAddr string
	outputFile     string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&configPath, "c", "", "Path to the YAML configuration file (shorthand)")
	flag.StringVar(&host, "host", "", "Target base URL (overrides config)")

	flag.DurationVar(&duration, "duration", 0, "Override test duration (e.g., 5m, 1h)")
	flag.DurationVar(&duration, "d", 0, "Override test duration (shorthand)")
	flag.IntVar(&users, "users", 0, "Override virtual user count")
	flag.StringVar(&mode, "mode", "", "Override traffic model: simple or advanced")

	flag.StringVar(&openapiPath, "openapi", "", "Verify driven endpoints against an OpenAPI spec and exit")

	flag.BoolVar(&validate, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "Show execution plan without running")
	flag.BoolVar(&list, "list", false, "List driven endpoints and configured profiles")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose output")
	flag.BoolVar(&verbose, "v", false, "Enable verbose output (shorthand)")
	flag.BoolVar(&noColor, "no-color", false, "Disable ANSI colors in console output")

	flag.StringVar(&prometheusAddr, "prometheus", "", "Prometheus metrics address (e.g., :9090)")
	flag.StringVar(&outputFile, "output-file", "", "JSON report path (supports {{.Timestamp}})")

	flag.Usage = printUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Portal Load Generator - University Application Portal Load Testing

USAGE:
    loadgen -config <path> [options]
    loadgen -host <url> [options]

DESCRIPTION:
    Drives HTTP traffic against the university application portal backend,
    simulating concurrent users performing registration, login, application
    submission, status polling, and payment initiation.

    Two traffic models are available:
      simple    one profile with weighted tasks (submit 10, get 5, pay 3)
      advanced  mixed population: normal (70%%), heavy (20%%),
                statusChecker (10%%)

CONFIGURATION:
    -config, -c <path>    Path to the YAML configuration file
    -host <url>           Target base URL (overrides config; with no
                          config a default configuration is used)

OVERRIDE OPTIONS:
    -duration, -d <dur>   Override test duration (e.g., "5m", "1h30m")
    -users <n>            Override virtual user count
    -mode <m>             Override traffic model: simple or advanced

UTILITY OPTIONS:
    -validate             Validate configuration and exit
    -dry-run              Show execution plan without running
    -list                 List driven endpoints and configured profiles
    -openapi <path>       Verify driven endpoints against an OpenAPI spec
    -version              Show version information
    -verbose, -v          Enable verbose output

OUTPUT OPTIONS:
    -no-color             Disable ANSI colors
    -output-file <path>   JSON report path (supports {{.Timestamp}})
    -prometheus <addr>    Prometheus metrics address (e.g., :9090)

EXAMPLES:
    # Run the advanced mix against a local portal for 10 minutes
    loadgen -host http://localhost:3000 -duration 10m -users 50

    # Run from a configuration file
    loadgen -config configs/portal.yaml

    # Simple combined profile with a JSON report
    loadgen -host http://localhost:3000 -mode simple -output-file report.json

    # Verify the traffic model against the portal's OpenAPI contract
    loadgen -openapi docs/portal-api.yaml
`)
}

func main() {
	flag.Parse()

	if showVersion {
		printVersion()
		os.Exit(0)
	}

	if openapiPath != "" {
		os.Exit(runSpecCheck(openapiPath))
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if validate {
		fmt.Printf("Configuration %q is valid.\n", cfg.Name)
		printPlan(cfg)
		os.Exit(0)
	}

	if list {
		printEndpointList(cfg)
		os.Exit(0)
	}

	if dryRun {
		printPlan(cfg)
		os.Exit(0)
	}

	if err := runLoadTest(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error running load test: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("loadgen version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// loadConfig loads the YAML config or, when only -host is given, builds a
// default configuration for that target.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	if host == "" {
		return nil, fmt.Errorf("either -config or -host is required")
	}

	cfg := &config.Config{Target: config.TargetConfig{BaseURL: host}}
	cfg.ApplyDefaults()
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if host != "" {
		cfg.Target.BaseURL = host
	}
	if duration > 0 {
		cfg.Duration = duration
	}
	if users > 0 {
		cfg.Users = users
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if prometheusAddr != "" {
		cfg.Output.PrometheusAddr = prometheusAddr
	}
	if outputFile != "" {
		cfg.Output.JSONFile = outputFile
	}
	if noColor {
		cfg.Output.NoColor = true
	}

	if verbose {
		fmt.Printf("Target:   %s\n", cfg.Target.BaseURL)
		fmt.Printf("Mode:     %s\n", cfg.Mode)
		fmt.Printf("Users:    %d\n", cfg.Users)
		fmt.Printf("Duration: %s\n", cfg.Duration)
	}
}

func printPlan(cfg *config.Config) {
	fmt.Println()
	fmt.Println("Execution plan:")
	fmt.Printf("  Target:          %s\n", cfg.Target.BaseURL)
	fmt.Printf("  Duration:        %s\n", cfg.Duration)
	fmt.Printf("  Virtual users:   %d\n", cfg.Users)
	fmt.Printf("  Mode:            %s\n", cfg.Mode)
	fmt.Printf("  Population mix:  %s\n", cfg.PopulationMix())
	fmt.Printf("  Think time:      %s - %s (%s)\n",
		cfg.ThinkTime.Min, cfg.ThinkTime.Max, cfg.ThinkTime.Distribution)
	if cfg.RateLimit.RPS > 0 {
		fmt.Printf("  Rate limit:      %.1f req/s (burst %d)\n", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	if cfg.Warmup.Enabled {
		fmt.Printf("  Warmup:          enabled (timeout %s)\n", cfg.Warmup.Timeout)
	}
}

func printEndpointList(cfg *config.Config) {
	fmt.Println("Driven endpoints:")
	for _, ep := range portal.Endpoints() {
		fmt.Printf("  %-6s %-26s (%s)\n", ep.Method, ep.Path, ep.Name)
	}

	fmt.Println()
	fmt.Println("Profiles:")
	if cfg.Mode == config.ModeSimple {
		fmt.Printf("  simple: submit=%d get=%d pay=%d\n",
			cfg.Tasks.Submit, cfg.Tasks.Get, cfg.Tasks.Pay)
		return
	}
	for _, p := range cfg.Profiles {
		fmt.Printf("  %-14s weight=%d (%.0f%%)\n", p.Name, p.Weight, cfg.ProfileShare(p.Name))
	}
}

// runSpecCheck verifies the driven endpoints against an OpenAPI document.
func runSpecCheck(path string) int {
	missing, err := apispec.VerifyFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if len(missing) == 0 {
		fmt.Printf("OpenAPI spec %s covers all %d driven endpoints.\n", path, len(portal.Endpoints()))
		return 0
	}

	fmt.Fprintf(os.Stderr, "OpenAPI spec %s is missing %d driven endpoint(s):\n", path, len(missing))
	for _, m := range missing {
		fmt.Fprintf(os.Stderr, "  %s\n", m)
	}
	return 1
}

func runLoadTest(cfg *config.Config) error {
	r, err := runner.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return r.Run(ctx)
}
