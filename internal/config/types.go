// Package config loads the per-project lint configuration file.
// It has no knowledge of watching or caching; see internal/project for that.
package config

import "encoding/json"

// ConfigFileName is the name of the per-project config file.
const ConfigFileName = ".oraclelint.json"

// ProjectConfig holds the settings read from a project's config file.
type ProjectConfig struct {
	// Filters are forwarded verbatim to the lint server. Their shape is
	// owned by the server; nil means the field was absent.
	Filters []json.RawMessage `json:"filters"`
}

// HasFilters reports whether the config declares any filters.
func (c *ProjectConfig) HasFilters() bool {
	return c != nil && c.Filters != nil
}
