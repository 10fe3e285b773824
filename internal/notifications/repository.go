// Package notifications provides notification intake, preference gating and
// asynchronous delivery.
package notifications

import (
	"context"
	"time"

	"github.com/electromart/notification-service/internal/domain"
)

// Repository defines keyed persistence for notification records.
// All operations are atomic at single-record granularity.
type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)

	// UpdateStatus applies a field-level merge: only the fields carried by
	// the update are written, the rest of the record is left untouched.
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error

	// ListByUser returns a page of the user's notifications ordered by
	// creation time descending, plus the total count for the filter.
	ListByUser(ctx context.Context, userID string, filter ListFilter) ([]domain.Notification, int, error)

	// ListIncomplete returns ids of notifications in a non-terminal status,
	// oldest first. Used to requeue deliveries after a restart.
	ListIncomplete(ctx context.Context, limit int) ([]string, error)

	// CountByStatus returns the number of notifications per status.
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}

// PreferenceRepository defines keyed persistence for preference records,
// uniquely keyed by user id.
type PreferenceRepository interface {
	Get(ctx context.Context, userID string) (*domain.Preferences, error)
	Upsert(ctx context.Context, prefs *domain.Preferences) error
}

// StatusUpdate describes a partial notification update. Nil pointers leave
// the corresponding field unchanged; a non-nil empty ErrorMessage clears it.
type StatusUpdate struct {
	Status         domain.Status
	SentAt         *time.Time
	ErrorMessage   *string
	IncrementRetry bool
}

// ListFilter narrows and pages a per-user notification listing.
type ListFilter struct {
	Status *domain.Status
	Page   int
	Limit  int
}

// Offset returns the row offset for the filter's page.
func (f ListFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}
