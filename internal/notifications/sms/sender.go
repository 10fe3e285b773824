// Package sms provides SMS notification delivery via an HTTP gateway.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/electromart/notification-service/internal/domain"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// ErrNoPhoneNumber is returned when the target user has no phone number.
// The gateway is not contacted in that case.
var ErrNoPhoneNumber = errors.New("no phone number available")

// Config holds SMS gateway configuration. The gateway speaks a Twilio-style
// REST API: form-encoded message create under an account resource.
type Config struct {
	APIURL     string
	AccountSID string
	AuthToken  string
	FromNumber string
	RateLimit  float64 // messages per second, 0 means unlimited
	Timeout    time.Duration
}

// Sender delivers SMS notifications through the configured gateway.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new SMS sender.
func NewSender(config Config) (*Sender, error) {
	if config.APIURL == "" {
		return nil, errors.New("sms sender: API URL is required")
	}
	if config.AccountSID == "" {
		return nil, errors.New("sms sender: account SID is required")
	}
	if config.FromNumber == "" {
		return nil, errors.New("sms sender: from number is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	slog.Info("sms sender configured",
		"api_url", config.APIURL,
		"from_number", config.FromNumber,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

// Channel returns the delivery channel.
func (s *Sender) Channel() domain.Channel {
	return domain.ChannelSMS
}

// Send delivers the notification message to the user's phone number.
// A user without a phone number fails immediately without a gateway call.
func (s *Sender) Send(ctx context.Context, n *domain.Notification, user *domain.UserDetails) error {
	if user.Phone == "" {
		return ErrNoPhoneNumber
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	form := url.Values{}
	form.Set("To", user.Phone)
	form.Set("From", s.config.FromNumber)
	form.Set("Body", n.Message)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json",
		strings.TrimRight(s.config.APIURL, "/"), s.config.AccountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, n.ID, user.Phone)
}

type messageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"` // error description on failure
}

func (s *Sender) handleResponse(resp *http.Response, notificationID, phone string) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		var msg messageResponse
		if err := json.Unmarshal(body, &msg); err == nil && msg.SID != "" {
			slog.Info("sms sent",
				"notification_id", notificationID,
				"to", maskPhone(phone),
				"message_sid", msg.SID,
			)
		}
		return nil
	}

	var msg messageResponse
	if err := json.Unmarshal(body, &msg); err == nil && msg.Message != "" {
		return fmt.Errorf("sms gateway error %d: %s", resp.StatusCode, msg.Message)
	}
	return fmt.Errorf("sms gateway error %d: %s", resp.StatusCode, string(body))
}

// maskPhone hides the middle digits for logging.
func maskPhone(phone string) string {
	if len(phone) < 6 {
		return "***"
	}
	return phone[:3] + "****" + phone[len(phone)-2:]
}
