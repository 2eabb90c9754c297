// Package config provides configuration structures for the portal load
// generator. The main Config struct ties together the target system, the
// virtual-user population, and reporting options.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Errors returned by the config package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// Mode selects which traffic model the generator runs.
type Mode string

// Supported traffic models.
const (
	// ModeSimple runs a single user profile with a weighted task table
	// (submit / get-details / pay).
	ModeSimple Mode = "simple"

	// ModeAdvanced runs a mixed population of behavior profiles
	// (normal / heavy / statusChecker).
	ModeAdvanced Mode = "advanced"
)

// Config is the root configuration structure for the load generator.
type Config struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name" json:"name"`

	// Description provides additional context about the configuration.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Target is the portal backend under test.
	Target TargetConfig `yaml:"target" json:"target"`

	// Duration is the total duration of the load test.
	// Default: 5m
	Duration time.Duration `yaml:"duration" json:"duration"`

	// Users is the number of concurrent virtual users.
	// Default: 10
	Users int `yaml:"users" json:"users"`

	// SpawnInterval is the delay between starting consecutive virtual users,
	// so the population ramps up instead of arriving all at once.
	// Default: 100ms
	SpawnInterval time.Duration `yaml:"spawnInterval,omitempty" json:"spawnInterval,omitempty"`

	// Mode selects the traffic model: "simple" or "advanced".
	// Default: "advanced"
	Mode Mode `yaml:"mode" json:"mode"`

	// Profiles defines the population mix for advanced mode.
	// If empty, the default mix is normal:7, heavy:2, statusChecker:1.
	Profiles []ProfileConfig `yaml:"profiles,omitempty" json:"profiles,omitempty"`

	// Tasks configures the task weights for simple mode.
	Tasks TaskWeights `yaml:"tasks,omitempty" json:"tasks,omitempty"`

	// ThinkTime configures the wait between scheduling turns of a user.
	ThinkTime ThinkTimeConfig `yaml:"thinkTime,omitempty" json:"thinkTime,omitempty"`

	// TimeUnit scales the fixed pauses inside behaviors (the normal chain's
	// 1 and 2 unit waits, the heavy burst's 0.5 unit pause, the poller's
	// 1 unit poll interval). Default: 1s.
	TimeUnit time.Duration `yaml:"timeUnit,omitempty" json:"timeUnit,omitempty"`

	// RateLimit optionally caps the global request rate.
	RateLimit RateLimitConfig `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`

	// Warmup configures session establishment before the measurement window.
	Warmup WarmupConfig `yaml:"warmup,omitempty" json:"warmup,omitempty"`

	// Output configures reporting.
	Output OutputConfig `yaml:"output,omitempty" json:"output,omitempty"`
}

// TargetConfig holds target system configuration.
type TargetConfig struct {
	// BaseURL is the base URL of the portal backend
	// (e.g., "http://localhost:3000").
	BaseURL string `yaml:"baseURL" json:"baseURL"`

	// Timeout is the per-request timeout.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// TLSSkipVerify skips TLS certificate verification (for testing only).
	TLSSkipVerify bool `yaml:"tlsSkipVerify,omitempty" json:"tlsSkipVerify,omitempty"`

	// Headers are additional headers to include in all requests.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// ProfileConfig assigns a population weight to a behavior profile.
type ProfileConfig struct {
	// Name is the behavior profile name: "normal", "heavy", "statusChecker".
	Name string `yaml:"name" json:"name"`

	// Weight is the relative share of the population running this profile.
	// Higher weight = more virtual users.
	Weight int `yaml:"weight" json:"weight"`
}

// TaskWeights configures the relative task frequencies for simple mode.
type TaskWeights struct {
	// Submit is the weight of the submit-application task. Default: 10
	Submit int `yaml:"submit" json:"submit"`

	// Get is the weight of the get-application-details task. Default: 5
	Get int `yaml:"get" json:"get"`

	// Pay is the weight of the initiate-payment task. Default: 3
	Pay int `yaml:"pay" json:"pay"`
}

// ThinkTimeConfig configures the wait between a user's scheduling turns.
type ThinkTimeConfig struct {
	// Min is the minimum think time. Default: 1s
	Min time.Duration `yaml:"min" json:"min"`

	// Max is the maximum think time. Default: 5s
	Max time.Duration `yaml:"max" json:"max"`

	// Distribution is the distribution type: "uniform" or "exponential".
	// Default: "uniform"
	Distribution string `yaml:"distribution,omitempty" json:"distribution,omitempty"`
}

// RateLimitConfig caps the global outbound request rate.
type RateLimitConfig struct {
	// RPS is the maximum requests per second across all users.
	// 0 disables rate limiting.
	RPS float64 `yaml:"rps,omitempty" json:"rps,omitempty"`

	// Burst is the token bucket burst size. Default: ceil(RPS).
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// WarmupConfig configures the session warmup phase.
type WarmupConfig struct {
	// Enabled establishes all sessions (register + login) before the
	// measurement clock starts, so setup traffic does not skew latencies.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Timeout bounds the warmup phase. Default: 2m
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// OutputConfig configures output and reporting.
type OutputConfig struct {
	// NoColor disables ANSI colors in console output.
	NoColor bool `yaml:"noColor,omitempty" json:"noColor,omitempty"`

	// ProgressInterval is how often the progress line is refreshed.
	// Default: 5s
	ProgressInterval time.Duration `yaml:"progressInterval,omitempty" json:"progressInterval,omitempty"`

	// JSONFile is an optional path for a JSON report of the final snapshot.
	JSONFile string `yaml:"jsonFile,omitempty" json:"jsonFile,omitempty"`

	// PrometheusAddr optionally exposes Prometheus metrics
	// (e.g., ":9090"). Empty disables the listener.
	PrometheusAddr string `yaml:"prometheusAddr,omitempty" json:"prometheusAddr,omitempty"`
}

// LoadFromFile loads a configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads a configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing YAML: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("%w: target.baseURL is required", ErrInvalidConfig)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	}
	if c.Users <= 0 {
		return fmt.Errorf("%w: users must be positive", ErrInvalidConfig)
	}
	if c.Mode != ModeSimple && c.Mode != ModeAdvanced {
		return fmt.Errorf("%w: mode must be %q or %q", ErrInvalidConfig, ModeSimple, ModeAdvanced)
	}

	totalWeight := 0
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("%w: profiles[%d].name is required", ErrInvalidConfig, i)
		}
		switch p.Name {
		case "normal", "heavy", "statusChecker":
		default:
			return fmt.Errorf("%w: profiles[%d].name %q is not a known profile", ErrInvalidConfig, i, p.Name)
		}
		if p.Weight <= 0 {
			return fmt.Errorf("%w: profiles[%d].weight must be positive", ErrInvalidConfig, i)
		}
		totalWeight += p.Weight
	}
	if c.Mode == ModeAdvanced && totalWeight == 0 {
		return fmt.Errorf("%w: advanced mode requires at least one profile", ErrInvalidConfig)
	}

	if c.Tasks.Submit < 0 || c.Tasks.Get < 0 || c.Tasks.Pay < 0 {
		return fmt.Errorf("%w: task weights must be non-negative", ErrInvalidConfig)
	}
	if c.Mode == ModeSimple && c.Tasks.Submit+c.Tasks.Get+c.Tasks.Pay == 0 {
		return fmt.Errorf("%w: simple mode requires at least one task weight", ErrInvalidConfig)
	}

	if c.ThinkTime.Min < 0 || c.ThinkTime.Max < 0 {
		return fmt.Errorf("%w: think time must be non-negative", ErrInvalidConfig)
	}
	if c.ThinkTime.Min > c.ThinkTime.Max {
		return fmt.Errorf("%w: thinkTime.min must be <= thinkTime.max", ErrInvalidConfig)
	}
	switch c.ThinkTime.Distribution {
	case "uniform", "exponential":
	default:
		return fmt.Errorf("%w: unknown think time distribution %q", ErrInvalidConfig, c.ThinkTime.Distribution)
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("%w: rateLimit.rps must be non-negative", ErrInvalidConfig)
	}

	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "portal-load-test"
	}
	if c.Duration == 0 {
		c.Duration = 5 * time.Minute
	}
	if c.Users == 0 {
		c.Users = 10
	}
	if c.SpawnInterval == 0 {
		c.SpawnInterval = 100 * time.Millisecond
	}
	if c.Mode == "" {
		c.Mode = ModeAdvanced
	}
	if c.Target.Timeout == 0 {
		c.Target.Timeout = 30 * time.Second
	}

	if len(c.Profiles) == 0 {
		c.Profiles = DefaultProfiles()
	}

	if c.Tasks.Submit == 0 && c.Tasks.Get == 0 && c.Tasks.Pay == 0 {
		c.Tasks = TaskWeights{Submit: 10, Get: 5, Pay: 3}
	}

	if c.ThinkTime.Min == 0 {
		c.ThinkTime.Min = 1 * time.Second
	}
	if c.ThinkTime.Max == 0 {
		c.ThinkTime.Max = 5 * time.Second
	}
	if c.ThinkTime.Distribution == "" {
		c.ThinkTime.Distribution = "uniform"
	}

	if c.TimeUnit == 0 {
		c.TimeUnit = 1 * time.Second
	}

	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS) + 1
	}

	if c.Warmup.Enabled && c.Warmup.Timeout == 0 {
		c.Warmup.Timeout = 2 * time.Minute
	}

	if c.Output.ProgressInterval == 0 {
		c.Output.ProgressInterval = 5 * time.Second
	}
}

// DefaultProfiles returns the default population mix for advanced mode:
// 70% normal users, 20% heavy users, 10% status checkers.
func DefaultProfiles() []ProfileConfig {
	return []ProfileConfig{
		{Name: "normal", Weight: 7},
		{Name: "heavy", Weight: 2},
		{Name: "statusChecker", Weight: 1},
	}
}

// TotalProfileWeight returns the sum of all profile weights.
func (c *Config) TotalProfileWeight() int {
	total := 0
	for _, p := range c.Profiles {
		total += p.Weight
	}
	return total
}

// ProfileShare returns the population share of a profile as a percentage.
// Returns 0 if the profile is not configured.
func (c *Config) ProfileShare(name string) float64 {
	total := c.TotalProfileWeight()
	if total == 0 {
		return 0
	}
	for _, p := range c.Profiles {
		if p.Name == name {
			return float64(p.Weight) / float64(total) * 100
		}
	}
	return 0
}

// PopulationMix returns a human-readable summary of the population mix,
// e.g., "normal (70%), heavy (20%), statusChecker (10%)".
func (c *Config) PopulationMix() string {
	if c.Mode == ModeSimple {
		return "simple (100%)"
	}
	out := ""
	for i, p := range c.Profiles {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s (%.0f%%)", p.Name, c.ProfileShare(p.Name))
	}
	return out
}
