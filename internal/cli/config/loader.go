package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// settingsKey is used to store the loaded settings in context.
type settingsKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagsNotSettings are persistent flags that are not settings keys.
var flagsNotSettings = map[string]bool{"config": true}

// findConfigFileUpward searches upward from startDir for a settings file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigFileUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range fileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// defaults returns the built-in settings.
func defaults() map[string]any {
	return map[string]any{
		"port":            DefaultPort,
		"install_path":    "",
		"start_server":    DefaultStartServer,
		"lint_on_change":  DefaultLintOnChange,
		"stop_on_exit":    DefaultStopOnExit,
		"probe_timeout":   DefaultProbeTimeout.String(),
		"startup_timeout": DefaultStartupTimeout.String(),
		"lint_timeout":    DefaultLintTimeout.String(),
		"verbose":         false,
		"output":          string(DefaultOutput),
	}
}

// Load loads settings from defaults, the settings file, environment
// variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// cfgFile names the settings file explicitly; when empty, oraclelint.yaml is
// searched for upward from the working directory.
func Load(cfgFile string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Settings file
	if cfgFile == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfgFile = findConfigFileUpward(cwd)
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment variables
	// Transform: ORACLELINT_INSTALL_PATH -> install_path
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || flagsNotSettings[f.Name] {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Decode
	var s Settings
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	s.ConfigFile = cfgFile

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &s, nil
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// WithSettings returns a copy of ctx carrying s.
func WithSettings(ctx context.Context, s *Settings) context.Context {
	return context.WithValue(ctx, settingsKey{}, s)
}

// GetSettings retrieves the settings from the command context, or the
// defaults when none were loaded.
func GetSettings(ctx context.Context) *Settings {
	if s, ok := ctx.Value(settingsKey{}).(*Settings); ok {
		return s
	}
	return Defaults()
}

// Defaults returns the built-in settings.
func Defaults() *Settings {
	return &Settings{
		Port:           DefaultPort,
		StartServer:    DefaultStartServer,
		LintOnChange:   DefaultLintOnChange,
		StopOnExit:     DefaultStopOnExit,
		ProbeTimeout:   DefaultProbeTimeout,
		StartupTimeout: DefaultStartupTimeout,
		LintTimeout:    DefaultLintTimeout,
		Output:         DefaultOutput,
	}
}
