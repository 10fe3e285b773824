// Package users provides the HTTP client for the external user service.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/electromart/notification-service/internal/domain"
)

const defaultTimeout = 10 * time.Second

// ErrNotFound is returned when the user service has no record for the id.
var ErrNotFound = errors.New("user not found")

// Config holds user service client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches delivery-relevant user attributes over HTTP.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a user service client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("user client: base URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

type userEnvelope struct {
	User map[string]interface{} `json:"user"`
}

// Lookup fetches a user by id. Every profile attribute is carried in string
// form in Fields for template substitution.
func (c *Client) Lookup(ctx context.Context, userID string) (*domain.UserDetails, error) {
	endpoint := fmt.Sprintf("%s/api/users/%s", strings.TrimRight(c.config.BaseURL, "/"), userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user service request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("user service status %d", resp.StatusCode)
	}

	var envelope userEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if envelope.User == nil {
		return nil, ErrNotFound
	}

	details := &domain.UserDetails{
		ID:     userID,
		Fields: make(map[string]string, len(envelope.User)),
	}
	for key, value := range envelope.User {
		details.Fields[key] = stringify(value)
	}
	details.Email = details.Fields["email"]
	details.Phone = details.Fields["phone"]

	return details, nil
}

// stringify renders a decoded JSON value the way it appears in templates.
func stringify(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case nil:
		return ""
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
