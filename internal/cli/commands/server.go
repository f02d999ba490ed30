package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/oraclelint/internal/cli/output"
	"github.com/leapstack-labs/oraclelint/internal/service"
	"github.com/leapstack-labs/oraclelint/internal/session"
	"github.com/spf13/cobra"
)

// ServerStatus is the state of the lint server as seen by the CLI.
type ServerStatus struct {
	Port             int    `json:"port"`
	State            string `json:"state"`
	Version          string `json:"version,omitempty"`
	SupportedVersion string `json:"supported_version"`
	Compatible       bool   `json:"compatible"`
	InstallPath      string `json:"install_path,omitempty"`
	Command          string `json:"command,omitempty"`
}

// NewServerCommand creates the server command and its subcommands.
func NewServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage the PL/SQL Lint Server",
		Long: `Start, stop and inspect the PL/SQL Lint Server on the configured port.

The server is launched from <install_path>/bin/plsql-lint-server with the
port as its only argument.`,
	}

	cmd.AddCommand(newServerStartCommand())
	cmd.AddCommand(newServerStopCommand())
	cmd.AddCommand(newServerStatusCommand())

	return cmd
}

func newServerStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the lint server unless it is already running",
		Example: `  # Start the server installed under /opt/plsql-lint
  oraclelint server start --install-path /opt/plsql-lint`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServerStart(cmd)
		},
	}
}

func newServerStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the running lint server to shut down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServerStop(cmd)
		},
	}
}

func newServerStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the lint server is running and its version",
		Example: `  # Show status
  oraclelint server status

  # Show status as JSON
  oraclelint server status -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServerStatus(cmd)
		},
	}
}

// serverSessionConfig never stops the server when the command ends.
func serverSessionConfig(c *CommandContext) session.Config {
	cfg := c.Settings.SessionConfig()
	cfg.StopOnExit = false
	return cfg
}

func runServerStart(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	cfg := serverSessionConfig(cmdCtx)
	cfg.StartServer = true
	sess, cleanup := cmdCtx.NewSession(cfg)
	defer cleanup()

	mgr := sess.Manager()
	if mgr.CheckAlive(ctx) {
		cmdCtx.Renderer.Success(fmt.Sprintf("Lint server already running on port %d", cfg.Port))
		return nil
	}
	if err := mgr.EnsureStarted(ctx); err != nil {
		return err
	}
	cmdCtx.Renderer.Success(fmt.Sprintf("Lint server started on port %d", cfg.Port))
	return nil
}

func runServerStop(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	sess, cleanup := cmdCtx.NewSession(serverSessionConfig(cmdCtx))
	defer cleanup()

	mgr := sess.Manager()
	if !mgr.CheckAlive(ctx) {
		cmdCtx.Renderer.Println(cmdCtx.Renderer.Muted(fmt.Sprintf("Lint server is not running on port %d", cmdCtx.Settings.Port)))
		return nil
	}
	mgr.Shutdown(ctx)
	cmdCtx.Renderer.Success(fmt.Sprintf("Shutdown requested on port %d", cmdCtx.Settings.Port))
	return nil
}

func runServerStatus(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()
	settings := cmdCtx.Settings

	sess, cleanup := cmdCtx.NewSession(serverSessionConfig(cmdCtx))
	defer cleanup()

	mgr := sess.Manager()
	status := ServerStatus{
		Port:             settings.Port,
		SupportedVersion: service.SupportedVersion,
		InstallPath:      settings.InstallPath,
	}
	if settings.InstallPath != "" {
		status.Command = service.CurrentPlatform().ServerCommand(settings.InstallPath) + " " + strconv.Itoa(settings.Port)
	}

	if mgr.CheckAlive(ctx) {
		if err := mgr.CheckVersion(ctx); err != nil {
			cmdCtx.Logger.Debug("version check failed", "error", err)
		}
		status.Version = mgr.Version()
		status.Compatible = status.Version == service.SupportedVersion
	}
	status.State = mgr.State().String()

	return renderServerStatus(cmdCtx.Renderer, status)
}

func renderServerStatus(r *output.Renderer, s ServerStatus) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(s)
	}

	r.Header("PL/SQL Lint Server")
	r.StatusLine("Port", strconv.Itoa(s.Port))
	r.StatusLine("State", s.State)
	version := s.Version
	switch {
	case version == "":
		version = r.Muted("unknown")
	case !s.Compatible:
		version = r.Styles().Warning.Render(version + " (unsupported)")
	}
	r.StatusLine("Version", version)
	r.StatusLine("Supported", s.SupportedVersion)
	if s.InstallPath == "" {
		r.StatusLine("Install path", r.Muted("not set"))
	} else {
		r.StatusLine("Install path", s.InstallPath)
		r.StatusLine("Command", s.Command)
	}
	return nil
}
