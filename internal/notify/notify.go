// Package notify tells the user a screenshot was copied.
package notify

import (
	"errors"
	"fmt"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(title, body string) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(title, body string) error {
	if n.Logger != nil {
		n.Logger.Info(title, zap.String("detail", body))
	}
	return nil
}

// DesktopNotifier posts a native desktop notification: Notification Center
// on macOS, the freedesktop D-Bus service on Linux and BSD, toasts on Windows.
type DesktopNotifier struct {
	post func(title, body string) error
}

// NewDesktopNotifier returns a notifier for the running platform.
func NewDesktopNotifier() *DesktopNotifier {
	beeep.AppName = "EzPaste"
	return &DesktopNotifier{post: func(title, body string) error {
		return beeep.Notify(title, body, "")
	}}
}

func (n *DesktopNotifier) Notify(title, body string) error {
	if err := n.post(title, body); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

// Multi fans a notification out to several notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(title, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
