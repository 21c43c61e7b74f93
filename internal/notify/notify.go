// Package notify delivers user-facing desktop notifications.
package notify

import (
	"sync"

	"mfo/internal/log"

	"github.com/gen2brain/beeep"
)

// Notifier is a fire-and-forget notification sink. Notify must never block
// the caller or report failure.
type Notifier interface {
	Notify(title, message string)
}

// Func adapts a plain function to Notifier.
type Func func(title, message string)

// Notify calls f.
func (f Func) Notify(title, message string) { f(title, message) }

// Nop drops every notification.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(string, string) {}

// Desktop sends notifications through the OS notification service.
type Desktop struct {
	logger log.Logging

	mu   sync.RWMutex
	icon string

	send func(title, message string, icon any) error
	wg   sync.WaitGroup
}

// NewDesktop returns a Desktop notifier using icon as the notification
// icon. A missing icon file only degrades the notification.
func NewDesktop(icon string, logger log.Logging) *Desktop {
	if logger == nil {
		logger = log.Discard()
	}
	return &Desktop{logger: logger, icon: icon, send: beeep.Notify}
}

// SetIcon switches the icon, e.g. after icon_path changes on reload.
func (d *Desktop) SetIcon(icon string) {
	d.mu.Lock()
	d.icon = icon
	d.mu.Unlock()
}

// Notify hands the notification to a goroutine and returns at once.
func (d *Desktop) Notify(title, message string) {
	d.mu.RLock()
	icon := d.icon
	d.mu.RUnlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.send(title, message, icon); err != nil {
			d.logger.With(log.F("title", title)).WithError(err).Debug("Notification failed")
		}
	}()
}

// Wait blocks until every notification handed out so far was attempted.
func (d *Desktop) Wait() {
	d.wg.Wait()
}

var (
	_ Notifier = (*Desktop)(nil)
	_ Notifier = Nop{}
	_ Notifier = Func(nil)
)
