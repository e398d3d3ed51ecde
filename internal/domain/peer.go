// Package domain holds the hub's connection- and task-lifecycle entities
// (spec §3). It has no dependency on transport, router, or registry
// packages — registries and the router import domain, never the reverse.
package domain

import "time"

// Status is the online/offline lifecycle state shared by Agent, Service,
// and Client records.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Agent mirrors spec §3's Agent entity. At most one record exists per ID
// and per Name; registering a new Name onto a different ID evicts the
// older record (status -> offline, reason "replaced").
type Agent struct {
	ID              string
	Name            string
	Capabilities    []string
	Status          Status
	ConnectionID    string
	StatusDetails   *StatusDetails
	RegisteredAt    time.Time
}

// Service mirrors spec §3's Service entity — identical shape and
// invariants to Agent, keyed independently.
type Service struct {
	ID            string
	Name          string
	Capabilities  []string
	Status        Status
	ConnectionID  string
	RegisteredAt  time.Time
	StatusDetails *StatusDetails
}

// Client mirrors spec §3's Client entity. Anonymous (Name == "") until an
// explicit client.register frame supplies a name.
type Client struct {
	ID           string
	Name         string
	Status       Status
	ConnectionID string
	RegisteredAt time.Time
	LastActiveAt time.Time
	Metadata     map[string]any
}

// StatusDetails carries the free-form detail attached to a status
// transition — most commonly the eviction reason on a name collision
// (spec §4.2: "marked offline with reason 'replaced'").
type StatusDetails struct {
	DisconnectedReason string `json:"disconnectedReason,omitempty"`
}

// ReplacedReason formats the name-collision eviction reason for the given
// peer kind ("agent", "service", "client"). Spec §8's boundary behavior
// requires the exact string "Replaced by agent with same name" for the
// agent case; other peer kinds follow the same template.
func ReplacedReason(kind string) string {
	return "Replaced by " + kind + " with same name"
}

// PendingConnection is a transient record replaced by a registered record
// on first valid registration frame (spec §3).
type PendingConnection struct {
	ConnectionID string
	ConnectedAt  time.Time
}
