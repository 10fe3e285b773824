package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/electromart/notification-service/internal/domain"
)

// UserLookup fetches delivery-relevant user attributes from the external
// user service.
type UserLookup interface {
	Lookup(ctx context.Context, userID string) (*domain.UserDetails, error)
}

// RetryConfig controls the orchestrator's backoff policy.
type RetryConfig struct {
	// MaxRetries is written into each record at creation; the orchestrator
	// honors the per-record value.
	MaxRetries int
	// BackoffUnit is the base delay; attempt n waits BackoffUnit * 2^n.
	BackoffUnit time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BackoffUnit: 1 * time.Second,
		MaxBackoff:  5 * time.Minute,
	}
}

// Orchestrator drives one notification from creation to a terminal status:
//
//	pending -> waiting -> sending -> {sent | retrying -> sending | failed}
//
// Every transition writes through to the store before the next step runs.
// The orchestrator recovers all delivery errors locally; failures are
// observable only through the persisted status and error message.
type Orchestrator struct {
	repo       Repository
	dispatcher *Dispatcher
	users      UserLookup
	retry      RetryConfig
}

// NewOrchestrator creates a delivery orchestrator.
func NewOrchestrator(repo Repository, dispatcher *Dispatcher, users UserLookup, retry RetryConfig) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		dispatcher: dispatcher,
		users:      users,
		retry:      retry,
	}
}

// Deliver runs the delivery task for one notification id. It returns when
// the notification reaches a terminal status or ctx is cancelled; a
// cancelled task leaves the record in its current status for requeueing.
func (o *Orchestrator) Deliver(ctx context.Context, id string) {
	n, err := o.repo.GetByID(ctx, id)
	if err != nil {
		slog.Error("load notification for delivery", "id", id, "error", err)
		return
	}

	if n.Status.Terminal() {
		slog.Debug("notification already terminal", "id", id, "status", n.Status)
		return
	}

	if n.Scheduled(time.Now()) {
		o.transition(ctx, n, StatusUpdate{Status: domain.StatusWaiting})
		if !sleepUntil(ctx, *n.ScheduledAt) {
			return
		}
	}

	for {
		o.transition(ctx, n, StatusUpdate{Status: domain.StatusSending})

		user, err := o.users.Lookup(ctx, n.UserID)
		if err != nil {
			// Unknown user is not retryable: no attempt can succeed.
			slog.Warn("user lookup failed", "id", n.ID, "user_id", n.UserID, "error", err)
			o.fail(ctx, n, "user not found")
			return
		}

		start := time.Now()
		err = o.dispatcher.Dispatch(ctx, n, user)
		recordDispatchDuration(string(n.Channel), time.Since(start))

		if err == nil {
			o.succeed(ctx, n)
			return
		}

		if n.RetryCount >= n.MaxRetries {
			o.fail(ctx, n, err.Error())
			return
		}

		errText := err.Error()
		o.transition(ctx, n, StatusUpdate{Status: domain.StatusRetrying, ErrorMessage: &errText})
		recordDelivery(string(n.Channel), string(n.Priority), "retry")

		slog.Info("notification scheduled for retry",
			"id", n.ID,
			"channel", n.Channel,
			"attempt", n.RetryCount+1,
			"max_retries", n.MaxRetries,
			"error", errText,
		)

		if !sleep(ctx, o.backoff(n.RetryCount)) {
			return
		}

		n.RetryCount++
		o.transition(ctx, n, StatusUpdate{Status: domain.StatusSending, IncrementRetry: true})
		// Next loop iteration re-attempts the same dispatch.
	}
}

func (o *Orchestrator) succeed(ctx context.Context, n *domain.Notification) {
	now := time.Now()
	empty := ""
	o.transition(ctx, n, StatusUpdate{
		Status:       domain.StatusSent,
		SentAt:       &now,
		ErrorMessage: &empty,
	})
	recordDelivery(string(n.Channel), string(n.Priority), "sent")

	slog.Info("notification sent",
		"id", n.ID,
		"channel", n.Channel,
		"attempts", n.RetryCount+1,
	)
}

func (o *Orchestrator) fail(ctx context.Context, n *domain.Notification, errText string) {
	o.transition(ctx, n, StatusUpdate{
		Status:       domain.StatusFailed,
		ErrorMessage: &errText,
	})
	recordDelivery(string(n.Channel), string(n.Priority), "failed")

	slog.Warn("notification failed",
		"id", n.ID,
		"channel", n.Channel,
		"retry_count", n.RetryCount,
		"error", errText,
	)
}

// transition writes a status change through to the store. Store faults are
// logged and the in-memory state keeps driving the task; a lost write is an
// accepted degradation, never promoted to success.
func (o *Orchestrator) transition(ctx context.Context, n *domain.Notification, update StatusUpdate) {
	n.Status = update.Status
	if update.SentAt != nil {
		n.SentAt = update.SentAt
	}
	if update.ErrorMessage != nil {
		n.ErrorMessage = *update.ErrorMessage
	}

	if err := o.repo.UpdateStatus(ctx, n.ID, update); err != nil {
		slog.Error("persist status transition",
			"id", n.ID,
			"status", update.Status,
			"error", err,
		)
	}
}

func (o *Orchestrator) backoff(retryCount int) time.Duration {
	backoff := o.retry.BackoffUnit << uint(retryCount)
	if o.retry.MaxBackoff > 0 && backoff > o.retry.MaxBackoff {
		backoff = o.retry.MaxBackoff
	}
	return backoff
}

// sleep waits for d or context cancellation. Returns false if cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleepUntil waits until instant t elapses. Returns false if cancelled.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return true
	}
	return sleep(ctx, d)
}
