package domain

import "time"

// MCPServerStatus is the lifecycle state of a registered MCP server
// (spec §3, §9: "a state machine {spawning -> initializing -> ready ->
// closing -> gone}" collapsed to the three states the spec's data model
// exposes externally).
type MCPServerStatus string

const (
	MCPRegistered MCPServerStatus = "registered"
	MCPOnline     MCPServerStatus = "online"
	MCPError      MCPServerStatus = "error"
)

// MCPServer mirrors spec §3's MCPServer entity. Type selects the launch
// convention ("node", "python", ...) unless Command is provided explicitly.
type MCPServer struct {
	ID           string
	Name         string
	Type         string
	Path         string
	Command      string
	Args         []string
	Capabilities []string
	Status       MCPServerStatus
	ConnectionID string
	Metadata     map[string]any
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// MCPTool is one tool advertised by a connected MCP server, as returned by
// its list_tools response.
type MCPTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}
