// Package autostart registers mfo to start with the user's desktop
// session. Only Linux desktops following the XDG autostart convention are
// supported; elsewhere every call fails softly.
package autostart

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned on platforms without an implementation.
var ErrUnsupported = errors.New("autostart is not supported on this platform")

// PlatformAutostart enables or disables launching at login.
type PlatformAutostart interface {
	Enable(command []string) error
	Disable() error
	Enabled() (bool, error)
}

// Command returns the command line autostart should launch: this
// executable with the given arguments.
func Command(args ...string) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return append([]string{exe}, args...), nil
}

// quoteExec quotes one Exec argument per the desktop entry spec.
func quoteExec(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\n\"'\\><~|&;$*?#()`") {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(arg) + `"`
}
