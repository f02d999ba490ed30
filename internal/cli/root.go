// Package cli provides the command-line interface for oraclelint.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/oraclelint/internal/cli/commands"
	"github.com/leapstack-labs/oraclelint/internal/cli/config"
	"github.com/leapstack-labs/oraclelint/internal/cli/output"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oraclelint",
		Short: "oraclelint - PL/SQL Lint Server client",
		Long: `oraclelint lints PL/SQL sources with the PL/SQL Lint Server.

It starts the server when needed, checks that its protocol version is
supported and forwards the filters of each project's .oraclelint.json.
Use "oraclelint lsp" for editor integration.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			settings, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = config.WithSettings(ctx, settings)
			ctx = context.WithValue(ctx, config.LoggerKey(), newLogger(settings.Verbose))
			cmd.SetContext(ctx)

			if settings.Verbose && settings.ConfigFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", settings.ConfigFile)
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./oraclelint.yaml)")
	flags.Int("port", config.DefaultPort, "Port of the PL/SQL Lint Server")
	flags.String("install-path", "", "Directory the PL/SQL Lint Server is installed in")
	flags.Bool("start-server", config.DefaultStartServer, "Start the lint server when it is not running")
	flags.Bool("lint-on-change", config.DefaultLintOnChange, "Lint documents on every change (lsp)")
	flags.Bool("stop-on-exit", config.DefaultStopOnExit, "Shut the lint server down when the session ends")
	flags.Duration("probe-timeout", config.DefaultProbeTimeout, "Timeout of liveness and version requests")
	flags.Duration("startup-timeout", config.DefaultStartupTimeout, "How long a started server may take to answer")
	flags.Duration("lint-timeout", config.DefaultLintTimeout, "Timeout of a lint request")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("output", "o", "", "Output format (auto|text|table|json)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		modes := make([]string, 0, len(output.Modes))
		for _, m := range output.Modes {
			modes = append(modes, m.String())
		}
		return modes, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.MarkPersistentFlagDirname("install-path")
	_ = rootCmd.MarkPersistentFlagFilename("config", "yaml", "yml")

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewLintCommand())
	rootCmd.AddCommand(commands.NewServerCommand())
	rootCmd.AddCommand(commands.NewLSPCommand(Version))
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// newLogger returns the stderr logger used by all commands.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for oraclelint.

To load completions:

Bash:
  $ source <(oraclelint completion bash)
  
  # To load completions for each session, execute once:
  # Linux:
  $ oraclelint completion bash > /etc/bash_completion.d/oraclelint
  # macOS:
  $ oraclelint completion bash > $(brew --prefix)/etc/bash_completion.d/oraclelint

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  
  # To load completions for each session, execute once:
  $ oraclelint completion zsh > "${fpath[1]}/_oraclelint"
  
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ oraclelint completion fish | source
  
  # To load completions for each session, execute once:
  $ oraclelint completion fish > ~/.config/fish/completions/oraclelint.fish

PowerShell:
  PS> oraclelint completion powershell | Out-String | Invoke-Expression
  
  # To load completions for every new session, run:
  PS> oraclelint completion powershell > oraclelint.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
	return cmd
}
