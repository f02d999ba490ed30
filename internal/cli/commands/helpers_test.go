package commands

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/oraclelint/internal/cli/config"
	"github.com/leapstack-labs/oraclelint/internal/cli/output"
	"github.com/leapstack-labs/oraclelint/internal/testutil"
	"github.com/spf13/cobra"
)

// testSettings returns settings pointing at a server on port that is
// never auto-started.
func testSettings(port int) *config.Settings {
	s := config.Defaults()
	s.Port = port
	s.StartServer = false
	s.ProbeTimeout = time.Second
	s.LintTimeout = 5 * time.Second
	s.Output = output.ModeText
	return s
}

// execute runs cmd with args and settings and returns its stdout and
// stderr.
func execute(t *testing.T, cmd *cobra.Command, settings *config.Settings, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	ctx := context.WithValue(context.Background(), config.LoggerKey(), testutil.NewTestLogger(t))
	ctx = config.WithSettings(ctx, settings)

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}
