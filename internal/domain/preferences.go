package domain

import "time"

// Preferences holds a user's per-channel and per-category notification toggles.
// One record per user, keyed by UserID.
type Preferences struct {
	UserID            string    `json:"user_id"`
	EmailEnabled      bool      `json:"email_enabled"`
	SMSEnabled        bool      `json:"sms_enabled"`
	PushEnabled       bool      `json:"push_enabled"`
	MarketingEmails   bool      `json:"marketing_emails"`
	OrderUpdates      bool      `json:"order_updates"`
	PromotionalOffers bool      `json:"promotional_offers"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DefaultPreferences returns the preferences created the first time a user
// is referenced without an existing record: email and push on, SMS and
// promotional offers off.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:            userID,
		EmailEnabled:      true,
		SMSEnabled:        false,
		PushEnabled:       true,
		MarketingEmails:   true,
		OrderUpdates:      true,
		PromotionalOffers: false,
	}
}

// ChannelEnabled reports whether the given channel is permitted.
func (p *Preferences) ChannelEnabled(c Channel) bool {
	switch c {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelPush:
		return p.PushEnabled
	}
	return false
}
