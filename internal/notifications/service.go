package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/electromart/notification-service/internal/domain"
	"github.com/google/uuid"
)

// Enqueuer hands accepted notifications to the delivery pool.
type Enqueuer interface {
	Enqueue(id string) error
}

// SendInput carries one notification intent through intake.
type SendInput struct {
	UserID       string
	Channel      domain.Channel
	Subject      string
	Message      string
	Template     string
	TemplateData map[string]string
	Priority     domain.Priority
	ScheduledAt  *time.Time
}

// BulkResult is the outcome for one item of a bulk submission.
type BulkResult struct {
	UserID         string `json:"user_id"`
	Status         string `json:"status"`
	NotificationID string `json:"notification_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Service implements notification intake and read paths. Delivery itself
// runs detached from the request on the worker pool.
type Service struct {
	repo       Repository
	prefs      PreferenceRepository
	gate       *Gate
	queue      Enqueuer
	maxRetries int
}

// NewService creates the notifications service.
func NewService(repo Repository, prefs PreferenceRepository, gate *Gate, queue Enqueuer, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = DefaultRetryConfig().MaxRetries
	}
	return &Service{
		repo:       repo,
		prefs:      prefs,
		gate:       gate,
		queue:      queue,
		maxRetries: maxRetries,
	}
}

// Send gates the intent against the user's preferences, persists it with
// status pending and hands it to the delivery pool. A disabled channel is
// rejected before anything is written.
func (s *Service) Send(ctx context.Context, input SendInput) (*domain.Notification, error) {
	if !input.Channel.Valid() {
		return nil, ErrInvalidChannel
	}

	prefs, err := s.gate.Resolve(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Authorize(prefs, input.Channel) {
		return nil, &ChannelDisabledError{Channel: input.Channel}
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	n := &domain.Notification{
		ID:           uuid.NewString(),
		UserID:       input.UserID,
		Channel:      input.Channel,
		Subject:      input.Subject,
		Message:      input.Message,
		Template:     input.Template,
		TemplateData: input.TemplateData,
		Priority:     priority,
		Status:       domain.StatusPending,
		ScheduledAt:  input.ScheduledAt,
		CreatedAt:    time.Now(),
		RetryCount:   0,
		MaxRetries:   s.maxRetries,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if err := s.queue.Enqueue(n.ID); err != nil {
		// The record stays pending; it is requeued on the next start.
		slog.Warn("delivery enqueue failed", "id", n.ID, "error", err)
	}

	slog.Debug("notification accepted",
		"id", n.ID,
		"user_id", n.UserID,
		"channel", n.Channel,
		"priority", n.Priority,
		"scheduled", n.ScheduledAt != nil,
	)

	return n, nil
}

// SendBulk processes each intent independently; one item's failure never
// aborts the batch.
func (s *Service) SendBulk(ctx context.Context, inputs []SendInput) []BulkResult {
	results := make([]BulkResult, 0, len(inputs))
	for _, input := range inputs {
		n, err := s.Send(ctx, input)
		if err != nil {
			results = append(results, BulkResult{
				UserID: input.UserID,
				Status: "failed",
				Error:  err.Error(),
			})
			continue
		}
		results = append(results, BulkResult{
			UserID:         input.UserID,
			Status:         "queued",
			NotificationID: n.ID,
		})
	}
	return results
}

// List returns a page of a user's notifications, newest first, with the
// total count for the filter.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]domain.Notification, int, error) {
	return s.repo.ListByUser(ctx, userID, filter)
}

// GetPreferences returns the stored preferences, or the defaults without
// persisting them when no record exists.
func (s *Service) GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if errors.Is(err, ErrPreferencesNotFound) {
		return domain.DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return prefs, nil
}

// UpdatePreferences replaces the user's preference record.
func (s *Service) UpdatePreferences(ctx context.Context, prefs *domain.Preferences) (*domain.Preferences, error) {
	if err := s.prefs.Upsert(ctx, prefs); err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return prefs, nil
}
