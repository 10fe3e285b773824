// Package postgres provides the PostgreSQL implementation of the
// notifications repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/electromart/notification-service/internal/domain"
	"github.com/electromart/notification-service/internal/notifications"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL notification repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const notificationColumns = `
	id, user_id, channel, subject, message, template, template_data,
	priority, status, scheduled_at, created_at, sent_at,
	retry_count, max_retries, error_message
`

// Create inserts a notification record.
func (r *Repository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, channel, subject, message, template, template_data,
			priority, status, scheduled_at, created_at, retry_count, max_retries
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		n.ID,
		n.UserID,
		n.Channel,
		n.Subject,
		n.Message,
		nullable(n.Template),
		n.TemplateData,
		n.Priority,
		n.Status,
		n.ScheduledAt,
		n.CreatedAt,
		n.RetryCount,
		n.MaxRetries,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// UpdateStatus applies a field-level merge of the status update. Only the
// fields carried by the update are written.
func (r *Repository) UpdateStatus(ctx context.Context, id string, update notifications.StatusUpdate) error {
	set := []string{"status = $2"}
	args := []interface{}{id, update.Status}

	if update.SentAt != nil {
		args = append(args, *update.SentAt)
		set = append(set, "sent_at = $"+strconv.Itoa(len(args)))
	}
	if update.ErrorMessage != nil {
		args = append(args, nullable(*update.ErrorMessage))
		set = append(set, "error_message = $"+strconv.Itoa(len(args)))
	}
	if update.IncrementRetry {
		set = append(set, "retry_count = retry_count + 1")
	}

	query := "UPDATE notifications SET " + strings.Join(set, ", ") + " WHERE id = $1"

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

// ListByUser returns a page of the user's notifications ordered by creation
// time descending plus the total count for the filter.
func (r *Repository) ListByUser(ctx context.Context, userID string, filter notifications.ListFilter) ([]domain.Notification, int, error) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += " AND status = $" + strconv.Itoa(len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM notifications " + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset())
	query := fmt.Sprintf(
		"SELECT %s FROM notifications %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		notificationColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, *n)
	}

	return items, total, nil
}

// ListIncomplete returns ids of notifications in a non-terminal status,
// oldest first.
func (r *Repository) ListIncomplete(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT id FROM notifications
		WHERE status IN ('pending', 'waiting', 'sending', 'retrying')
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list incomplete notifications: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan notification id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// CountByStatus returns the number of notifications per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM notifications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int64)
	for rows.Next() {
		var status domain.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}

	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	var template, errorMessage *string

	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Channel,
		&n.Subject,
		&n.Message,
		&template,
		&n.TemplateData,
		&n.Priority,
		&n.Status,
		&n.ScheduledAt,
		&n.CreatedAt,
		&n.SentAt,
		&n.RetryCount,
		&n.MaxRetries,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	if template != nil {
		n.Template = *template
	}
	if errorMessage != nil {
		n.ErrorMessage = *errorMessage
	}
	return &n, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PreferenceRepository implements notifications.PreferenceRepository using
// PostgreSQL.
type PreferenceRepository struct {
	db *pgxpool.Pool
}

// NewPreferenceRepository creates a new PostgreSQL preference repository.
func NewPreferenceRepository(db *pgxpool.Pool) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get retrieves a user's preference record.
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (*domain.Preferences, error) {
	query := `
		SELECT user_id, email_enabled, sms_enabled, push_enabled,
		       marketing_emails, order_updates, promotional_offers,
		       created_at, updated_at
		FROM preferences
		WHERE user_id = $1
	`
	var p domain.Preferences
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.EmailEnabled,
		&p.SMSEnabled,
		&p.PushEnabled,
		&p.MarketingEmails,
		&p.OrderUpdates,
		&p.PromotionalOffers,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return &p, nil
}

// Upsert creates or fully replaces a user's preference record.
func (r *PreferenceRepository) Upsert(ctx context.Context, prefs *domain.Preferences) error {
	query := `
		INSERT INTO preferences (
			user_id, email_enabled, sms_enabled, push_enabled,
			marketing_emails, order_updates, promotional_offers
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			push_enabled = EXCLUDED.push_enabled,
			marketing_emails = EXCLUDED.marketing_emails,
			order_updates = EXCLUDED.order_updates,
			promotional_offers = EXCLUDED.promotional_offers,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		prefs.UserID,
		prefs.EmailEnabled,
		prefs.SMSEnabled,
		prefs.PushEnabled,
		prefs.MarketingEmails,
		prefs.OrderUpdates,
		prefs.PromotionalOffers,
	).Scan(&prefs.CreatedAt, &prefs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}
