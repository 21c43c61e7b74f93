package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const entryName = "mfo.desktop"

// XDG writes a desktop entry into the autostart directory.
type XDG struct {
	Dir string
}

// NewXDG targets $XDG_CONFIG_HOME/autostart.
func NewXDG() *XDG {
	return &XDG{Dir: filepath.Join(xdg.ConfigHome, "autostart")}
}

func (a *XDG) path() string {
	return filepath.Join(a.Dir, entryName)
}

// Enable writes the entry, replacing an existing one.
func (a *XDG) Enable(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty autostart command")
	}
	quoted := make([]string, len(command))
	for i, arg := range command {
		quoted[i] = quoteExec(arg)
	}
	entry := strings.Join([]string{
		"[Desktop Entry]",
		"Type=Application",
		"Name=mfo",
		"Comment=Move new downloads into category folders",
		"Exec=" + strings.Join(quoted, " "),
		"Terminal=false",
		"X-GNOME-Autostart-enabled=true",
		"",
	}, "\n")

	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("create autostart directory: %w", err)
	}
	if err := os.WriteFile(a.path(), []byte(entry), 0o644); err != nil {
		return fmt.Errorf("write autostart entry: %w", err)
	}
	return nil
}

// Disable removes the entry. A missing entry is not an error.
func (a *XDG) Disable() error {
	if err := os.Remove(a.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove autostart entry: %w", err)
	}
	return nil
}

// Enabled reports whether the entry exists.
func (a *XDG) Enabled() (bool, error) {
	_, err := os.Stat(a.path())
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
