// Package push provides push notification delivery.
package push

import (
	"context"
	"log/slog"

	"github.com/electromart/notification-service/internal/domain"
)

// Sender implements push notification delivery.
type Sender struct{}

// NewSender creates a new push sender.
func NewSender() *Sender {
	return &Sender{}
}

// Channel returns the delivery channel.
func (s *Sender) Channel() domain.Channel {
	return domain.ChannelPush
}

// Send records intent to deliver and reports success.
// TODO: integrate a push provider (FCM) once the mobile clients register device tokens.
func (s *Sender) Send(_ context.Context, n *domain.Notification, user *domain.UserDetails) error {
	slog.Info("push notification delivered (stub)",
		"notification_id", n.ID,
		"user_id", user.ID,
		"subject", n.Subject,
	)
	return nil
}
