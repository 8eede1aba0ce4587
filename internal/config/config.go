// Package config loads the cadenza configuration from YAML or JSON5,
// with environment variable expansion, $include resolution, defaults,
// and validation.
package config

import (
	"fmt"
	"strings"
)

// Config is the main configuration structure for cadenza.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Agents  AgentsConfig  `yaml:"agents"`
	Memory  MemoryConfig  `yaml:"memory"`
	Tools   ToolsConfig   `yaml:"tools"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// Addr returns the listen address for the websocket server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MetricsAddr returns the listen address for the metrics endpoint.
func (s ServerConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.MetricsPort)
}

type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxRetries  int     `yaml:"max_retries"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

type AgentsConfig struct {
	// Default names the agent new sessions route to.
	Default string `yaml:"default"`
	// Executor names the agent the planner delegates tasks to.
	Executor string `yaml:"executor"`
	// MaxIterations overrides the per-turn tool-calling cap for every
	// agent. Zero keeps each agent's own default.
	MaxIterations int `yaml:"max_iterations"`
	// MaxTasks bounds one plan run.
	MaxTasks int `yaml:"max_tasks"`
}

type MemoryConfig struct {
	GlobalShortTerm  int `yaml:"global_short_term"`
	GlobalLongTerm   int `yaml:"global_long_term"`
	SessionShortTerm int `yaml:"session_short_term"`
	SessionLongTerm  int `yaml:"session_long_term"`
	AgentShortTerm   int `yaml:"agent_short_term"`
	AgentLongTerm    int `yaml:"agent_long_term"`
}

type ToolsConfig struct {
	Workspace          string `yaml:"workspace"`
	MaxReadBytes       int    `yaml:"max_read_bytes"`
	ExecTimeoutSeconds int    `yaml:"exec_timeout_seconds"`
}

type LoggingConfig struct {
	Level          string   `yaml:"level"`
	Format         string   `yaml:"format"`
	RedactPatterns []string `yaml:"redact_patterns"`
}

// Load reads, merges, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.Agents.Default == "" {
		cfg.Agents.Default = "general"
	}
	if cfg.Agents.Executor == "" {
		cfg.Agents.Executor = cfg.Agents.Default
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate rejects configurations that cannot produce a working server.
func (cfg *Config) Validate() error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort < 1 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 1 and 65535, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.MetricsPort == cfg.Server.Port {
		return fmt.Errorf("server.metrics_port must differ from server.port")
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required (set it in the config or via environment expansion)")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	if cfg.Agents.MaxIterations < 0 {
		return fmt.Errorf("agents.max_iterations must be >= 0")
	}
	for name, value := range map[string]int{
		"memory.global_short_term":  cfg.Memory.GlobalShortTerm,
		"memory.global_long_term":   cfg.Memory.GlobalLongTerm,
		"memory.session_short_term": cfg.Memory.SessionShortTerm,
		"memory.session_long_term":  cfg.Memory.SessionLongTerm,
		"memory.agent_short_term":   cfg.Memory.AgentShortTerm,
		"memory.agent_long_term":    cfg.Memory.AgentLongTerm,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	return nil
}
