// Package config loads the oraclelint CLI settings.
//
// Settings come from built-in defaults, an optional oraclelint.yaml file,
// ORACLELINT_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"time"

	"github.com/leapstack-labs/oraclelint/internal/cli/output"
	"github.com/leapstack-labs/oraclelint/internal/service"
	"github.com/leapstack-labs/oraclelint/internal/session"
)

// Settings holds all CLI configuration options.
type Settings struct {
	Port           int               `koanf:"port" yaml:"port"`
	InstallPath    string            `koanf:"install_path" yaml:"install_path"`
	StartServer    bool              `koanf:"start_server" yaml:"start_server"`
	LintOnChange   bool              `koanf:"lint_on_change" yaml:"lint_on_change"`
	StopOnExit     bool              `koanf:"stop_on_exit" yaml:"stop_on_exit"`
	ProbeTimeout   time.Duration     `koanf:"probe_timeout" yaml:"probe_timeout"`
	StartupTimeout time.Duration     `koanf:"startup_timeout" yaml:"startup_timeout"`
	LintTimeout    time.Duration     `koanf:"lint_timeout" yaml:"lint_timeout"`
	Verbose        bool              `koanf:"verbose" yaml:"verbose"`
	Output         output.OutputMode `koanf:"output" yaml:"output"`

	// ConfigFile is the settings file that was loaded, if any.
	ConfigFile string `koanf:"-" yaml:"-"`
}

// Default configuration values.
const (
	DefaultPort           = 8734
	DefaultStartServer    = true
	DefaultLintOnChange   = true
	DefaultStopOnExit     = false
	DefaultProbeTimeout   = service.DefaultProbeTimeout
	DefaultStartupTimeout = service.DefaultStartupTimeout
	DefaultLintTimeout    = service.DefaultLintTimeout
	DefaultOutput         = output.ModeAuto
)

// Settings file names searched for, in order.
var fileNames = []string{"oraclelint.yaml", "oraclelint.yml"}

// EnvPrefix prefixes environment variables read as settings.
const EnvPrefix = "ORACLELINT_"

// SessionConfig returns the lint session configuration for s.
func (s *Settings) SessionConfig() session.Config {
	return session.Config{
		Port:           s.Port,
		InstallPath:    s.InstallPath,
		StartServer:    s.StartServer,
		LintOnChange:   s.LintOnChange,
		StopOnExit:     s.StopOnExit,
		ProbeTimeout:   s.ProbeTimeout,
		StartupTimeout: s.StartupTimeout,
		LintTimeout:    s.LintTimeout,
	}
}
