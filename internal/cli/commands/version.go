package commands

import (
	"fmt"

	"github.com/leapstack-labs/oraclelint/internal/service"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display oraclelint version and the lint server protocol version it supports.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "oraclelint v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "PL/SQL Lint Server client, protocol %s\n", service.SupportedVersion)
		},
	}
}
