package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/electromart/notification-service/internal/domain"
)

// Gate authorizes notifications against per-user channel preferences.
// It runs strictly before persistence: a rejected intent leaves no record.
type Gate struct {
	prefs PreferenceRepository
}

// NewGate creates a preference gate.
func NewGate(prefs PreferenceRepository) *Gate {
	return &Gate{prefs: prefs}
}

// Resolve returns the user's stored preferences, creating and persisting the
// defaults the first time a user is referenced without a record.
func (g *Gate) Resolve(ctx context.Context, userID string) (*domain.Preferences, error) {
	prefs, err := g.prefs.Get(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, ErrPreferencesNotFound) {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	prefs = domain.DefaultPreferences(userID)
	if err := g.prefs.Upsert(ctx, prefs); err != nil {
		return nil, fmt.Errorf("create default preferences: %w", err)
	}

	slog.Debug("created default preferences", "user_id", userID)
	return prefs, nil
}

// Authorize reports whether the channel is enabled in the preferences.
func (g *Gate) Authorize(prefs *domain.Preferences, channel domain.Channel) bool {
	return prefs.ChannelEnabled(channel)
}
