package model

import "time"

// Config is the complete claimcheck configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Upstream     UpstreamConfig     `yaml:"upstream" mapstructure:"upstream"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Session      SessionConfig      `yaml:"session" mapstructure:"session"`
	Input        InputConfig        `yaml:"input" mapstructure:"input"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// UpstreamConfig configures access to the hosted verification agents
type UpstreamConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey    string        `yaml:"-" mapstructure:"api_key"`    // Secret, env only
	ProjectID string        `yaml:"-" mapstructure:"project_id"` // Secret, env only
	Agents    AgentIDs      `yaml:"agents" mapstructure:"agents"`
	Timeouts  AgentTimeouts `yaml:"timeouts" mapstructure:"timeouts"`

	// Outbound token bucket per agent (0 disables)
	RequestsPerSecond float64    `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int        `yaml:"burst_size" mapstructure:"burst_size"`
	Rates             AgentRates `yaml:"rates" mapstructure:"rates"` // Per-agent overrides
}

// Configured reports whether both upstream secrets are present
func (u UpstreamConfig) Configured() bool {
	return u.APIKey != "" && u.ProjectID != ""
}

// AgentIDs names the remote agent behind each gateway
type AgentIDs struct {
	Extract    string `yaml:"extract" mapstructure:"extract"`
	Verify     string `yaml:"verify" mapstructure:"verify"`
	SourceCred string `yaml:"source_cred" mapstructure:"source_cred"`
	Assess     string `yaml:"assess" mapstructure:"assess"`
}

// AgentTimeouts bounds each gateway's upstream call (0 = no gateway timeout)
type AgentTimeouts struct {
	Extract    time.Duration `yaml:"extract" mapstructure:"extract"`
	Verify     time.Duration `yaml:"verify" mapstructure:"verify"`
	SourceCred time.Duration `yaml:"source_cred" mapstructure:"source_cred"`
	Assess     time.Duration `yaml:"assess" mapstructure:"assess"`
}

// AgentRates overrides RequestsPerSecond for single agents (0 = no override)
type AgentRates struct {
	Extract    float64 `yaml:"extract" mapstructure:"extract"`
	Verify     float64 `yaml:"verify" mapstructure:"verify"`
	SourceCred float64 `yaml:"source_cred" mapstructure:"source_cred"`
	Assess     float64 `yaml:"assess" mapstructure:"assess"`
}

// OrchestratorConfig configures the client-side evidence orchestration
type OrchestratorConfig struct {
	GatewayURL                string        `yaml:"gateway_url" mapstructure:"gateway_url"` // Empty = in-process gateways
	CallTimeout               time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	AutoCheckDelay            time.Duration `yaml:"auto_check_delay" mapstructure:"auto_check_delay"`
	TolerateSourceCredFailure bool          `yaml:"tolerate_source_cred_failure" mapstructure:"tolerate_source_cred_failure"`
	Workers                   int           `yaml:"workers" mapstructure:"workers"`
}

// SessionConfig configures session storage
type SessionConfig struct {
	Backend       string        `yaml:"backend" mapstructure:"backend"` // memory, redis
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"-" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// InputConfig configures URL input resolution
type InputConfig struct {
	ResolveURLs   bool          `yaml:"resolve_urls" mapstructure:"resolve_urls"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxTextChars  int           `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LLMConfig configures the optional session summary
type LLMConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Model          string        `yaml:"model" mapstructure:"model"`
	APIKey         string        `yaml:"-" mapstructure:"api_key"`
	BaseURL        string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens      int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	StrictEvidence bool          `yaml:"strict_evidence" mapstructure:"strict_evidence"`
}

// LogConfig configures service logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.fluo.one/api/v1",
			Agents: AgentIDs{
				Extract:    "agent-0rpKkKttamHK9WnJaN",
				Verify:     "agent-2i2O86cbJPBmSygMQ9",
				SourceCred: "agent-ZIRfFcdyMusVYfhOXc",
				Assess:     "agent-UmeIQIjx2QahQJfcT0",
			},
			Timeouts: AgentTimeouts{
				Extract:    0,
				Verify:     25 * time.Second,
				SourceCred: 20 * time.Second,
				Assess:     25 * time.Second,
			},
			RequestsPerSecond: 0,
			BurstSize:         10,
		},
		Orchestrator: OrchestratorConfig{
			CallTimeout:    30 * time.Second,
			AutoCheckDelay: 650 * time.Millisecond,
			Workers:        4,
		},
		Session: SessionConfig{
			Backend:   "memory",
			TTL:       2 * time.Hour,
			RedisAddr: "localhost:6379",
		},
		Input: InputConfig{
			ResolveURLs:   false,
			Timeout:       20 * time.Second,
			UserAgent:     "claimcheck/0.1 (+https://github.com/ppiankov/claimcheck)",
			MaxBodyBytes:  2_000_000,
			MaxTextChars:  20_000,
			RespectRobots: true,
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			Timeout:        30 * time.Second,
			MaxTokens:      1000,
			StrictEvidence: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
