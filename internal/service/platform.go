package service

import (
	"runtime"
	"strings"
)

// ServerBinary is the lint server launcher, relative to its install path.
const ServerBinary = "plsql-lint-server"

// Platform builds filesystem paths and commands for a target OS
// independently of the OS the code runs on.
type Platform struct {
	OS string // runtime.GOOS value
}

// CurrentPlatform returns the Platform of the running process.
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS}
}

// Windows reports whether the platform uses Windows conventions.
func (p Platform) Windows() bool {
	return p.OS == "windows"
}

// Separator returns the path separator of the platform.
func (p Platform) Separator() string {
	if p.Windows() {
		return `\`
	}
	return "/"
}

// Join joins path elements with the platform separator. Empty elements
// are skipped and separators at the joints are collapsed.
func (p Platform) Join(elem ...string) string {
	sep := p.Separator()
	out := ""
	for _, e := range elem {
		if p.Windows() {
			e = strings.ReplaceAll(e, "/", sep)
		}
		if e == "" {
			continue
		}
		if out == "" {
			out = e
			continue
		}
		out = strings.TrimRight(out, sep) + sep + strings.TrimLeft(e, sep)
	}
	return out
}

// ServerCommand returns the executable that starts the lint server from
// installPath: <install>/bin/plsql-lint-server, or the .bat variant with
// backslashes on Windows.
func (p Platform) ServerCommand(installPath string) string {
	cmd := p.Join(installPath, "bin", ServerBinary)
	if p.Windows() {
		cmd += ".bat"
	}
	return cmd
}
