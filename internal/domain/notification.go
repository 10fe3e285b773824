package domain

import "time"

// Channel represents a notification delivery medium.
type Channel string

// Delivery channels.
const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Valid reports whether the channel is a known delivery medium.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS || c == ChannelPush
}

// Priority represents notification priority. It is carried for
// observability only and does not affect delivery order.
type Priority string

// Priorities.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Status represents the delivery state of a notification.
type Status string

// Delivery statuses. Sent and failed are terminal.
const (
	StatusPending  Status = "pending"
	StatusWaiting  Status = "waiting"
	StatusSending  Status = "sending"
	StatusRetrying Status = "retrying"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
)

// Valid reports whether the status is known.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusWaiting, StatusSending, StatusRetrying, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition occurs from this status.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Notification represents a single delivery intent.
type Notification struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Channel      Channel           `json:"channel"`
	Subject      string            `json:"subject"`
	Message      string            `json:"message"`
	Template     string            `json:"template,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Priority     Priority          `json:"priority"`
	Status       Status            `json:"status"`
	ScheduledAt  *time.Time        `json:"scheduled_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	RetryCount   int               `json:"retry_count"`
	MaxRetries   int               `json:"max_retries"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

// Scheduled reports whether delivery is deferred past the given instant.
func (n *Notification) Scheduled(now time.Time) bool {
	return n.ScheduledAt != nil && n.ScheduledAt.After(now)
}
