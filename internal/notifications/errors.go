package notifications

import (
	"errors"
	"fmt"

	"github.com/electromart/notification-service/internal/domain"
)

// Repository errors.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrPreferencesNotFound  = errors.New("preferences not found")
)

// Intake errors.
var (
	ErrChannelDisabled = errors.New("notifications are disabled for this channel")
	ErrInvalidChannel  = errors.New("unknown notification channel")
	ErrQueueFull       = errors.New("delivery queue is full")
)

// ChannelDisabledError reports that a user's preferences forbid the channel.
// It matches ErrChannelDisabled via errors.Is while keeping the channel name
// in the message, so bulk results carry per-item error text.
type ChannelDisabledError struct {
	Channel domain.Channel
}

func (e *ChannelDisabledError) Error() string {
	return fmt.Sprintf("%s notifications are disabled", e.Channel)
}

func (e *ChannelDisabledError) Is(target error) bool {
	return target == ErrChannelDisabled
}
