package autostart

// New returns the autostart implementation for this platform.
func New() PlatformAutostart {
	return NewXDG()
}
