// Package config loads the hub's configuration struct (spec §6): CLI
// flags override environment variables, which override an optional YAML
// file, which overrides built-in defaults.
//
// Grounded on the teacher's cmd/server/main.go flag/env layering
// (envOrDefault + cobra PersistentFlags) combined with
// jaakkos-stringwork/internal/policy's yaml-tagged Config/DefaultConfig/
// LoadConfig shape, since this hub's MCP server list is exactly the kind
// of named, yaml-overlaid collection that package models for its own
// mcp_servers section.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MCPServerConfig describes one MCP server to auto-register at startup,
// mirroring jaakkos-stringwork/internal/policy.MCPServerConfig's
// command-based shape (this hub never dials URL-based MCP servers, so the
// url/auth fields are not carried over).
type MCPServerConfig struct {
	Type         string   `yaml:"type,omitempty"`
	Path         string   `yaml:"path,omitempty"`
	Command      string   `yaml:"command,omitempty"`
	Args         []string `yaml:"args,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty"`
}

// Config is the hub's full runtime configuration.
type Config struct {
	AgentAddr   string `yaml:"agent_addr"`
	ServiceAddr string `yaml:"service_addr"`
	ClientAddr  string `yaml:"client_addr"`
	AdminAddr   string `yaml:"admin_addr"`

	LogLevel string `yaml:"log_level"`

	AdminTokenSecret string `yaml:"admin_token_secret"`

	MCPServers map[string]MCPServerConfig `yaml:"mcp_servers"`
}

// Default returns the hub's built-in defaults, applied before any
// environment or file overlay.
func Default() *Config {
	return &Config{
		AgentAddr:   ":3000",
		ServiceAddr: ":3002",
		ClientAddr:  ":3001",
		AdminAddr:   ":9090",
		LogLevel:    "info",
	}
}

// Load builds a Config from defaults, optionally overlaid by the YAML
// file at path (skipped if path is empty), then by environment variables.
// CLI flags are applied by the caller (cmd/orchestratorhub) after Load
// returns: only the flags the operator explicitly set are copied onto the
// returned Config, so flags take precedence by being applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AgentAddr = envOrDefault("ORCHESTRATORHUB_AGENT_ADDR", cfg.AgentAddr)
	cfg.ServiceAddr = envOrDefault("ORCHESTRATORHUB_SERVICE_ADDR", cfg.ServiceAddr)
	cfg.ClientAddr = envOrDefault("ORCHESTRATORHUB_CLIENT_ADDR", cfg.ClientAddr)
	cfg.AdminAddr = envOrDefault("ORCHESTRATORHUB_ADMIN_ADDR", cfg.AdminAddr)
	cfg.LogLevel = envOrDefault("ORCHESTRATORHUB_LOG_LEVEL", cfg.LogLevel)
	cfg.AdminTokenSecret = envOrDefault("ORCHESTRATORHUB_ADMIN_TOKEN_SECRET", cfg.AdminTokenSecret)
}

// envOrDefault mirrors arkeep-io-arkeep/server/cmd/server/main.go's helper
// of the same name.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
