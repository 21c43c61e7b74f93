//go:build !linux

package autostart

type unsupported struct{}

// New returns the autostart implementation for this platform.
func New() PlatformAutostart {
	return unsupported{}
}

func (unsupported) Enable([]string) error  { return ErrUnsupported }
func (unsupported) Disable() error         { return ErrUnsupported }
func (unsupported) Enabled() (bool, error) { return false, ErrUnsupported }
