package commands

import (
	"fmt"

	"github.com/leapstack-labs/oraclelint/internal/cli/config"
	"github.com/leapstack-labs/oraclelint/internal/cli/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// settingsView is the printable form of config.Settings. Durations are
// rendered as Go duration strings so the output can be pasted back into
// oraclelint.yaml.
type settingsView struct {
	Port           int    `yaml:"port" json:"port"`
	InstallPath    string `yaml:"install_path" json:"install_path"`
	StartServer    bool   `yaml:"start_server" json:"start_server"`
	LintOnChange   bool   `yaml:"lint_on_change" json:"lint_on_change"`
	StopOnExit     bool   `yaml:"stop_on_exit" json:"stop_on_exit"`
	ProbeTimeout   string `yaml:"probe_timeout" json:"probe_timeout"`
	StartupTimeout string `yaml:"startup_timeout" json:"startup_timeout"`
	LintTimeout    string `yaml:"lint_timeout" json:"lint_timeout"`
	Verbose        bool   `yaml:"verbose" json:"verbose"`
	Output         string `yaml:"output" json:"output"`
}

func newSettingsView(s *config.Settings) settingsView {
	return settingsView{
		Port:           s.Port,
		InstallPath:    s.InstallPath,
		StartServer:    s.StartServer,
		LintOnChange:   s.LintOnChange,
		StopOnExit:     s.StopOnExit,
		ProbeTimeout:   s.ProbeTimeout.String(),
		StartupTimeout: s.StartupTimeout.String(),
		LintTimeout:    s.LintTimeout.String(),
		Verbose:        s.Verbose,
		Output:         s.Output.String(),
	}
}

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective settings",
		Long: `Print the settings after merging defaults, oraclelint.yaml,
ORACLELINT_* environment variables and flags.`,
		Example: `  # Show effective settings
  oraclelint config

  # Show settings with a flag override
  oraclelint config --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd)
		},
	}
}

func runConfig(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	view := newSettingsView(cmdCtx.Settings)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(view)
	}

	if file := cmdCtx.Settings.ConfigFile; file != "" {
		r.Println(r.Muted("# " + file))
	}
	data, err := yaml.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	r.Printf("%s", data)
	return nil
}
