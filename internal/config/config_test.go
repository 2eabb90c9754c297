package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadFromBytes tests loading and defaulting from YAML.
func TestLoadFromBytes(t *testing.T) {
	yaml := `
name: portal-smoke
target:
  baseURL: http://localhost:3000
duration: 2m
users: 25
mode: advanced
thinkTime:
  min: 500ms
  max: 2s
`
	cfg, err := LoadFromBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "portal-smoke", cfg.Name)
	assert.Equal(t, "http://localhost:3000", cfg.Target.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Duration)
	assert.Equal(t, 25, cfg.Users)
	assert.Equal(t, ModeAdvanced, cfg.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.ThinkTime.Min)
	assert.Equal(t, 2*time.Second, cfg.ThinkTime.Max)

	// Defaults fill everything the YAML left out.
	assert.Equal(t, 30*time.Second, cfg.Target.Timeout)
	assert.Equal(t, DefaultProfiles(), cfg.Profiles)
	assert.Equal(t, TaskWeights{Submit: 10, Get: 5, Pay: 3}, cfg.Tasks)
	assert.Equal(t, "uniform", cfg.ThinkTime.Distribution)
	assert.Equal(t, time.Second, cfg.TimeUnit)
}

// TestLoadFromBytesInvalidYAML tests that malformed YAML is rejected.
func TestLoadFromBytesInvalidYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("target: [unclosed"))
	require.Error(t, err)
}

// TestValidate tests configuration validation.
func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Target: TargetConfig{BaseURL: "http://localhost:3000"}}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing base URL",
			mutate:  func(c *Config) { c.Target.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "zero duration",
			mutate:  func(c *Config) { c.Duration = 0 },
			wantErr: true,
		},
		{
			name:    "zero users",
			mutate:  func(c *Config) { c.Users = 0 },
			wantErr: true,
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "chaotic" },
			wantErr: true,
		},
		{
			name:    "profile without name",
			mutate:  func(c *Config) { c.Profiles = []ProfileConfig{{Weight: 1}} },
			wantErr: true,
		},
		{
			name:    "profile with zero weight",
			mutate:  func(c *Config) { c.Profiles = []ProfileConfig{{Name: "normal", Weight: 0}} },
			wantErr: true,
		},
		{
			name:    "unknown profile name",
			mutate:  func(c *Config) { c.Profiles = []ProfileConfig{{Name: "celebrity", Weight: 1}} },
			wantErr: true,
		},
		{
			name:    "miscased profile name",
			mutate:  func(c *Config) { c.Profiles = []ProfileConfig{{Name: "statuschecker", Weight: 1}} },
			wantErr: true,
		},
		{
			name:    "negative task weight",
			mutate:  func(c *Config) { c.Tasks.Pay = -1 },
			wantErr: true,
		},
		{
			name: "simple mode with all-zero task weights",
			mutate: func(c *Config) {
				c.Mode = ModeSimple
				c.Tasks = TaskWeights{}
			},
			wantErr: true,
		},
		{
			name: "think time min above max",
			mutate: func(c *Config) {
				c.ThinkTime.Min = 10 * time.Second
				c.ThinkTime.Max = 1 * time.Second
			},
			wantErr: true,
		},
		{
			name:    "unknown distribution",
			mutate:  func(c *Config) { c.ThinkTime.Distribution = "pareto" },
			wantErr: true,
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.RateLimit.RPS = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestDefaultProfiles tests the default population mix.
func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles()
	require.Len(t, profiles, 3)

	assert.Equal(t, ProfileConfig{Name: "normal", Weight: 7}, profiles[0])
	assert.Equal(t, ProfileConfig{Name: "heavy", Weight: 2}, profiles[1])
	assert.Equal(t, ProfileConfig{Name: "statusChecker", Weight: 1}, profiles[2])
}

// TestProfileShare tests population share computation.
func TestProfileShare(t *testing.T) {
	cfg := &Config{Target: TargetConfig{BaseURL: "http://x"}}
	cfg.ApplyDefaults()

	assert.InDelta(t, 70.0, cfg.ProfileShare("normal"), 0.01)
	assert.InDelta(t, 20.0, cfg.ProfileShare("heavy"), 0.01)
	assert.InDelta(t, 10.0, cfg.ProfileShare("statusChecker"), 0.01)
	assert.Equal(t, 0.0, cfg.ProfileShare("missing"))
}

// TestPopulationMix tests the human-readable mix summary.
func TestPopulationMix(t *testing.T) {
	cfg := &Config{Target: TargetConfig{BaseURL: "http://x"}}
	cfg.ApplyDefaults()
	assert.Equal(t, "normal (70%), heavy (20%), statusChecker (10%)", cfg.PopulationMix())

	cfg.Mode = ModeSimple
	assert.Equal(t, "simple (100%)", cfg.PopulationMix())
}

// TestLoadFromFileNotFound tests the missing-file error.
func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/portal.yaml")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

// TestRateLimitBurstDefault tests that burst defaults from RPS.
func TestRateLimitBurstDefault(t *testing.T) {
	cfg := &Config{
		Target:    TargetConfig{BaseURL: "http://x"},
		RateLimit: RateLimitConfig{RPS: 50},
	}
	cfg.ApplyDefaults()
	assert.Equal(t, 51, cfg.RateLimit.Burst)
}
