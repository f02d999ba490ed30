package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputMode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"TEXT", ModeText, false},
		{" table ", ModeTable, false},
		{"json", ModeJSON, false},
		{"markdown", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	assert.Equal(t, ModeAuto, Mode("bogus"))
}

func TestOutputMode_UnmarshalText(t *testing.T) {
	var m OutputMode
	require.NoError(t, m.UnmarshalText([]byte("json")))
	assert.Equal(t, ModeJSON, m)
	assert.Error(t, m.UnmarshalText([]byte("xml")))
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{ModeAuto, true, ModeTable},
		{ModeAuto, false, ModeText},
		{ModeJSON, true, ModeJSON},
		{ModeText, true, ModeText},
		{ModeTable, false, ModeTable},
	}
	for _, tt := range tests {
		r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
		assert.Equal(t, tt.want, r.EffectiveMode(), "%s tty=%v", tt.mode, tt.isTTY)
	}
}

func TestRenderer_NonTTYHasNoEscapes(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	r := NewRendererWithTTY(out, errOut, false, ModeAuto)

	r.Header("Lint server")
	r.StatusLine("state", "running")
	r.Success("started")
	r.Warning("version mismatch")

	assert.NotContains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "Lint server")
	assert.Contains(t, out.String(), "state:")
	assert.Contains(t, out.String(), "✓ started")
	assert.Equal(t, "warning: version mismatch\n", errOut.String())
}

func TestRenderer_JSON(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"diagnostics": 2}))
	assert.JSONEq(t, `{"diagnostics": 2}`, out.String())
}

func TestNewRenderer_BufferIsNotATerminal(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
}
