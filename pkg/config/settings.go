package config

import "time"

// MCPSettings tunes the MCP integration layer. Zero values mean "use
// default"; user values are merged over DefaultMCPSettings.
type MCPSettings struct {
	CacheTTLSeconds            int     `json:"cache_ttl" yaml:"cache_ttl"`
	HealthCheckIntervalSeconds int     `json:"health_check_interval" yaml:"health_check_interval"`
	EnableFallback             *bool   `json:"enable_fallback,omitempty" yaml:"enable_fallback,omitempty"`
	EnableCache                *bool   `json:"enable_cache,omitempty" yaml:"enable_cache,omitempty"`
	MaxRetries                 int     `json:"max_retries" yaml:"max_retries"`
	RetryDelaySeconds          float64 `json:"retry_delay" yaml:"retry_delay"`
}

// DefaultMCPSettings returns the built-in MCP layer tuning.
func DefaultMCPSettings() *MCPSettings {
	return &MCPSettings{
		CacheTTLSeconds:            300,
		HealthCheckIntervalSeconds: 60,
		EnableFallback:             BoolPtr(true),
		EnableCache:                BoolPtr(true),
		MaxRetries:                 3,
		RetryDelaySeconds:          1.0,
	}
}

// CacheTTL returns the cache TTL as a duration.
func (s *MCPSettings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// HealthCheckInterval returns the minimum time between health re-checks.
func (s *MCPSettings) HealthCheckInterval() time.Duration {
	return time.Duration(s.HealthCheckIntervalSeconds) * time.Second
}

// RetryDelay returns the base delay between retries.
func (s *MCPSettings) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds * float64(time.Second))
}

// FallbackEnabled reports whether CLI/HTTP fallbacks may run.
func (s *MCPSettings) FallbackEnabled() bool {
	return s.EnableFallback == nil || *s.EnableFallback
}

// CacheEnabled reports whether the result cache is active.
func (s *MCPSettings) CacheEnabled() bool {
	return s.EnableCache == nil || *s.EnableCache
}

// RunSettings governs run directories and orchestration timing.
type RunSettings struct {
	// OutputDir is the root under which runs/, staging/, and cache/ live.
	OutputDir string `yaml:"output_dir"`

	// AgentTimeout bounds a single agent execution.
	AgentTimeout time.Duration `yaml:"agent_timeout"`

	// CancelGracePeriod is how long in-flight agents get to finish after
	// the run context is cancelled.
	CancelGracePeriod time.Duration `yaml:"cancel_grace_period"`

	// PauseTimeout bounds a PAUSE-and-wait hub coordination exchange.
	PauseTimeout time.Duration `yaml:"pause_timeout"`
}

// DefaultRunSettings returns the built-in run settings.
func DefaultRunSettings() *RunSettings {
	return &RunSettings{
		OutputDir:         "./output",
		AgentTimeout:      5 * time.Minute,
		CancelGracePeriod: 10 * time.Second,
		PauseTimeout:      30 * time.Second,
	}
}

// BoolPtr returns a pointer to b. Convenience for *bool struct fields.
func BoolPtr(b bool) *bool { return &b }
