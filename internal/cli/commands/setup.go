package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/oraclelint/internal/cli/config"
	"github.com/leapstack-labs/oraclelint/internal/cli/output"
	"github.com/leapstack-labs/oraclelint/internal/notifier"
	"github.com/leapstack-labs/oraclelint/internal/session"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Settings *config.Settings
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the settings loaded by
// the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	settings := config.GetSettings(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), settings.Output)

	return &CommandContext{
		Settings: settings,
		Logger:   logger,
		Renderer: r,
	}
}

// NewSession creates a lint session from the command settings. Session
// notifications are printed to stderr until the returned cleanup runs.
// The cleanup deactivates the session.
func (c *CommandContext) NewSession(cfg session.Config) (*session.Controller, func()) {
	sess := session.New(cfg, session.WithLogger(c.Logger))

	ch := sess.Notifier().Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ch {
			c.printMessage(msg)
		}
	}()

	cleanup := func() {
		sess.Deactivate(context.Background())
		sess.Notifier().Unsubscribe(ch)
		<-done
	}
	return sess, cleanup
}

func (c *CommandContext) printMessage(msg notifier.Message) {
	switch msg.Level {
	case notifier.LevelInfo:
		_, _ = fmt.Fprintln(c.Renderer.ErrWriter(), c.Renderer.Muted(msg.Text))
	case notifier.LevelWarning:
		c.Renderer.Warning(msg.Text)
	default:
		c.Renderer.Error(msg.Text)
	}
}

// workingRoots returns roots as absolute paths, or the current directory
// when empty.
func workingRoots(roots []string) ([]string, error) {
	if len(roots) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		return []string{wd}, nil
	}
	return absPaths(roots)
}
