// Package service talks to the external PL/SQL lint server: it probes and
// launches the server process, checks its protocol version and performs
// lint requests over its HTTP protocol.
package service

import "encoding/json"

// SupportedVersion is the lint server protocol version this client speaks.
const SupportedVersion = "1.0.3"

// Endpoints of the lint server protocol.
const (
	PathCheckAlive = "/check-alive"
	PathVersion    = "/version"
	PathLintFile   = "/lint-file"
	PathShutdown   = "/shutdown"
)

// LintRequest is the body of a /lint-file call.
type LintRequest struct {
	Path    string            `json:"path"`
	Content string            `json:"content"`
	Filters []json.RawMessage `json:"filters"`
}

// Diagnostic is a single lint finding as reported by the server.
type Diagnostic struct {
	Severity    string   `json:"severity"`
	Location    Location `json:"location"`
	Excerpt     string   `json:"excerpt"`
	Description string   `json:"description,omitempty"`
}

// Location points at the span of a Diagnostic.
// Position holds [[startRow, startCol], [endRow, endCol]], zero-based.
type Location struct {
	File     string    `json:"file"`
	Position [2][2]int `json:"position"`
}

// Severity values used by the server.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)
