// Package adminapi implements the hub's internal-only HTTP surface (spec
// §6's ambient addition): health, Prometheus metrics, and read-only
// registry/task introspection. Not part of the peer protocol.
//
// Grounded on arkeep-io-arkeep/server/internal/api/{router.go,
// middleware.go,response.go}: the {"data": ...}/{"error": {...}} envelope
// convention, the RequestID/RealIP/RequestLogger/Recoverer middleware
// chain, and Bearer-token gating are all kept; the RSA-keypair,
// multi-role JWT auth is simplified to a single shared-secret HS256
// token, since this domain has no user database to issue per-user claims
// against (spec.md Non-goals: "no authorization policy beyond presence of
// a registered identity").
package adminapi

import (
	"encoding/json"
	"net/http"
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func ok(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, envelope{"data": payload})
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func errJSON(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, envelope{"error": errorResponse{Message: message, Code: code}})
}

func errUnauthorized(w http.ResponseWriter) {
	errJSON(w, http.StatusUnauthorized, "authentication required", "unauthorized")
}

func errNotFound(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusNotFound, message, "not_found")
}
