package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultAddresses(t *testing.T) {
	cfg := Default()
	if cfg.AgentAddr != ":3000" || cfg.ServiceAddr != ":3002" || cfg.ClientAddr != ":3001" || cfg.AdminAddr != ":9090" {
		t.Fatalf("unexpected default addresses: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
}

func TestLoadWithoutFileAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AgentAddr != ":3000" {
		t.Fatalf("expected default agent addr, got %q", cfg.AgentAddr)
	}
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
agent_addr: ":4000"
log_level: debug
mcp_servers:
  fs:
    type: node
    path: /srv/mcp/fs/index.js
    capabilities:
      - files
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AgentAddr != ":4000" {
		t.Fatalf("expected agent addr overridden to :4000, got %q", cfg.AgentAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %q", cfg.LogLevel)
	}
	if cfg.ServiceAddr != ":3002" {
		t.Fatalf("expected service addr to keep its default, got %q", cfg.ServiceAddr)
	}

	fs, ok := cfg.MCPServers["fs"]
	if !ok {
		t.Fatal("expected fs MCP server entry")
	}
	if fs.Type != "node" || fs.Path != "/srv/mcp/fs/index.js" {
		t.Fatalf("unexpected fs server config: %+v", fs)
	}
	if len(fs.Capabilities) != 1 || fs.Capabilities[0] != "files" {
		t.Fatalf("expected capabilities [files], got %v", fs.Capabilities)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/no/such/config.yaml"); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}

func TestEnvOverridesDefaultAndFile(t *testing.T) {
	t.Setenv("ORCHESTRATORHUB_LOG_LEVEL", "warn")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env override to win, got %q", cfg.LogLevel)
	}
}
