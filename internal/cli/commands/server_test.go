package commands

import (
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/oraclelint/internal/cli/output"
	"github.com/leapstack-labs/oraclelint/internal/notifier"
	"github.com/leapstack-labs/oraclelint/internal/service"
	"github.com/leapstack-labs/oraclelint/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedServerPort(t *testing.T) int {
	t.Helper()
	srv := servicetest.New(t)
	port := srv.Port()
	srv.Close()
	return port
}

func TestServerStatus_Running(t *testing.T) {
	srv := servicetest.New(t)

	stdout, _, err := execute(t, NewServerCommand(), testSettings(srv.Port()), "status")
	require.NoError(t, err)

	assert.Contains(t, stdout, "running")
	assert.Contains(t, stdout, service.SupportedVersion)
	assert.Contains(t, stdout, "not set")
	assert.Equal(t, 1, srv.Hits(service.PathVersion))
}

func TestServerStatus_JSON(t *testing.T) {
	srv := servicetest.New(t, servicetest.WithVersion("0.9.0"))

	settings := testSettings(srv.Port())
	settings.Output = output.ModeJSON
	settings.InstallPath = "/opt/lint"
	stdout, _, err := execute(t, NewServerCommand(), settings, "status")
	require.NoError(t, err)

	var got ServerStatus
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, srv.Port(), got.Port)
	assert.Equal(t, "running", got.State)
	assert.Equal(t, "0.9.0", got.Version)
	assert.Equal(t, service.SupportedVersion, got.SupportedVersion)
	assert.False(t, got.Compatible)
	assert.Equal(t, "/opt/lint", got.InstallPath)
	assert.Contains(t, got.Command, "plsql-lint-server")
}

func TestServerStatus_NotRunning(t *testing.T) {
	settings := testSettings(closedServerPort(t))
	settings.Output = output.ModeJSON

	stdout, _, err := execute(t, NewServerCommand(), settings, "status")
	require.NoError(t, err)

	var got ServerStatus
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "not running", got.State)
	assert.Empty(t, got.Version)
}

func TestServerStatus_DoesNotStopServer(t *testing.T) {
	srv := servicetest.New(t)
	settings := testSettings(srv.Port())
	settings.StopOnExit = true

	_, _, err := execute(t, NewServerCommand(), settings, "status")
	require.NoError(t, err)
	assert.Zero(t, srv.Hits(service.PathShutdown))
}

func TestServerStop(t *testing.T) {
	srv := servicetest.New(t)

	stdout, _, err := execute(t, NewServerCommand(), testSettings(srv.Port()), "stop")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Shutdown requested")
	assert.Equal(t, 1, srv.Hits(service.PathShutdown))
}

func TestServerStop_NotRunning(t *testing.T) {
	stdout, _, err := execute(t, NewServerCommand(), testSettings(closedServerPort(t)), "stop")
	require.NoError(t, err)
	assert.Contains(t, stdout, "not running")
}

func TestServerStart_AlreadyRunning(t *testing.T) {
	srv := servicetest.New(t)

	stdout, _, err := execute(t, NewServerCommand(), testSettings(srv.Port()), "start")
	require.NoError(t, err)
	assert.Contains(t, stdout, "already running")
}

func TestServerStart_WithoutInstallPath(t *testing.T) {
	_, stderr, err := execute(t, NewServerCommand(), testSettings(closedServerPort(t)), "start")
	require.ErrorIs(t, err, notifier.ErrLaunchFailure)
	assert.Contains(t, stderr, "has not been set")
}
