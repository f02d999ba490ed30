package commands

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leapstack-labs/oraclelint/internal/cli/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand_YAML(t *testing.T) {
	settings := testSettings(9000)
	settings.InstallPath = "/opt/lint"
	settings.StartupTimeout = 15 * time.Second

	stdout, _, err := execute(t, NewConfigCommand(), settings)
	require.NoError(t, err)

	assert.Contains(t, stdout, "port: 9000")
	assert.Contains(t, stdout, "install_path: /opt/lint")
	assert.Contains(t, stdout, "startup_timeout: 15s")
	assert.Contains(t, stdout, "output: text")
}

func TestConfigCommand_ShowsConfigFile(t *testing.T) {
	settings := testSettings(9000)
	settings.ConfigFile = "/work/oraclelint.yaml"

	stdout, _, err := execute(t, NewConfigCommand(), settings)
	require.NoError(t, err)
	assert.Contains(t, stdout, "# /work/oraclelint.yaml")
}

func TestConfigCommand_JSON(t *testing.T) {
	settings := testSettings(9000)
	settings.Output = output.ModeJSON

	stdout, _, err := execute(t, NewConfigCommand(), settings)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.InDelta(t, 9000, got["port"], 0)
	assert.Equal(t, "1s", got["probe_timeout"])
}
