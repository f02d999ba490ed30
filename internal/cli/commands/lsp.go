package commands

import (
	"os"

	"github.com/leapstack-labs/oraclelint/internal/lsp"
	"github.com/leapstack-labs/oraclelint/internal/session"
	"github.com/spf13/cobra"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC. Project roots
come from the client's workspace folders (or rootUri). Open PL/SQL
documents are linted by the PL/SQL Lint Server on open and save, and on
every change when lint_on_change is enabled.`,
		Example: `  # Start LSP server (usually called by an editor)
  oraclelint lsp

  # Start LSP server for a server on another port
  oraclelint lsp --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd, version)
		},
	}

	return cmd
}

func runLSP(cmd *cobra.Command, version string) error {
	cmdCtx := NewCommandContext(cmd)
	logger := cmdCtx.Logger

	sess := session.New(cmdCtx.Settings.SessionConfig(), session.WithLogger(logger))
	server := lsp.NewServerWithLogger(os.Stdin, os.Stdout, sess, logger)
	server.SetVersion(version)
	return server.Run(cmd.Context())
}
