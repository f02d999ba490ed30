// Package output renders CLI results for terminals, pipes and machines.
package output

import (
	"fmt"
	"strings"
)

// OutputMode selects how results are rendered.
type OutputMode string

// Output modes.
const (
	ModeAuto  OutputMode = "auto"  // TTY: table, otherwise: text
	ModeText  OutputMode = "text"  // one line per diagnostic, grep friendly
	ModeTable OutputMode = "table" // boxed table
	ModeJSON  OutputMode = "json"
)

// Modes lists the accepted modes, for flag completion.
var Modes = []OutputMode{ModeAuto, ModeText, ModeTable, ModeJSON}

// Mode converts s to an OutputMode, falling back to ModeAuto for
// unknown values.
func Mode(s string) OutputMode {
	m, err := ParseMode(s)
	if err != nil {
		return ModeAuto
	}
	return m
}

// ParseMode parses s as an OutputMode. The empty string is ModeAuto.
func ParseMode(s string) (OutputMode, error) {
	m := OutputMode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return ModeAuto, nil
	}
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown output mode %q (want one of auto, text, table, json)", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *OutputMode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// String returns the mode name.
func (m OutputMode) String() string {
	return string(m)
}
