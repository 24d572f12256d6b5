// Package notify delivers best-effort notifications: SMS through Vonage,
// chat messages through a Telegram bot and tracks to the local playback
// scheduler.
package notify

import (
	"errors"
	"fmt"
)

// ErrNotificationFailed wraps every dispatcher failure.
var ErrNotificationFailed = errors.New("notification failed")

func failed(channel string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNotificationFailed, channel, err)
}
