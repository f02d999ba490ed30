package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatform_ServerCommand(t *testing.T) {
	tests := []struct {
		name        string
		os          string
		installPath string
		want        string
	}{
		{name: "linux", os: "linux", installPath: "/opt/plsql-lint", want: "/opt/plsql-lint/bin/plsql-lint-server"},
		{name: "linux trailing slash", os: "linux", installPath: "/opt/plsql-lint/", want: "/opt/plsql-lint/bin/plsql-lint-server"},
		{name: "darwin relative", os: "darwin", installPath: "tools/lint", want: "tools/lint/bin/plsql-lint-server"},
		{name: "unix root", os: "linux", installPath: "/", want: "/bin/plsql-lint-server"},
		{name: "windows", os: "windows", installPath: `C:\tools\plsql-lint`, want: `C:\tools\plsql-lint\bin\plsql-lint-server.bat`},
		{name: "windows forward slashes", os: "windows", installPath: "C:/tools/plsql-lint/", want: `C:\tools\plsql-lint\bin\plsql-lint-server.bat`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Platform{OS: tt.os}
			assert.Equal(t, tt.want, p.ServerCommand(tt.installPath))
		})
	}
}

func TestPlatform_Join(t *testing.T) {
	unix := Platform{OS: "linux"}
	assert.Equal(t, "a/b/c", unix.Join("a", "b", "c"))
	assert.Equal(t, "/a/b", unix.Join("/a/", "/b"))
	assert.Equal(t, "a/c", unix.Join("a", "", "c"))
	assert.Equal(t, "/", unix.Join("/"))

	win := Platform{OS: "windows"}
	assert.Equal(t, `a\b`, win.Join("a", "b"))
	assert.Equal(t, `\\server\share\bin`, win.Join(`\\server\share\`, "bin"))
	assert.True(t, win.Windows())
	assert.False(t, unix.Windows())
}
