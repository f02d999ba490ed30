package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/oraclelint/internal/notifier"
)

// Path returns the config file path for a project root.
func Path(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

// Exists reports whether dir contains a config file.
func Exists(dir string) bool {
	info, err := os.Stat(Path(dir))
	return err == nil && !info.IsDir()
}

// LoadFromDir loads the ProjectConfig of the given project root.
// Returns nil, nil if no config file is found (not an error condition).
func LoadFromDir(dir string) (*ProjectConfig, error) {
	cfg, err := LoadFile(Path(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return cfg, err
}

// LoadFile reads and parses a config file.
// An empty file yields an empty config. Malformed content yields a
// *notifier.Error of kind KindConfigParse.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a project config file chosen by the host
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse decodes config file content. path is used for error reporting only.
func Parse(path string, data []byte) (*ProjectConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &ProjectConfig{}, nil
	}

	var cfg ProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &notifier.Error{Kind: notifier.KindConfigParse, Op: "load config", Path: path, Err: err}
	}
	return &cfg, nil
}
