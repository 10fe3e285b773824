package notifications

import (
	"context"
	"fmt"

	"github.com/electromart/notification-service/internal/domain"
)

// Sender delivers a notification over one channel. Implementations return a
// descriptive error on delivery failure; they never panic and never block
// past their own transport timeouts.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, n *domain.Notification, user *domain.UserDetails) error
}

// Dispatcher routes a notification to the sender matching its channel.
type Dispatcher struct {
	senders map[domain.Channel]Sender
}

// NewDispatcher creates a dispatcher over the given senders.
func NewDispatcher(senders ...Sender) *Dispatcher {
	senderMap := make(map[domain.Channel]Sender, len(senders))
	for _, s := range senders {
		senderMap[s.Channel()] = s
	}
	return &Dispatcher{senders: senderMap}
}

// Dispatch performs a single delivery attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification, user *domain.UserDetails) error {
	sender, ok := d.senders[n.Channel]
	if !ok {
		return fmt.Errorf("no sender for channel %q", n.Channel)
	}
	return sender.Send(ctx, n, user)
}
