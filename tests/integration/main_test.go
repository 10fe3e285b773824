//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/electromart/notification-service/internal/app"
	"github.com/electromart/notification-service/internal/config"
	"github.com/electromart/notification-service/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	testServer *httptest.Server
	testDB     *pgxpool.Pool

	mailpitContainer *testutil.MailpitContainer
	mailpitClient    *MailpitClient

	userDirectory *userServiceStub
)

// userServiceStub fakes the external user service: GET /api/users/{id}
// answers from an in-memory directory.
type userServiceStub struct {
	mu    sync.Mutex
	users map[string]map[string]interface{}
}

func (s *userServiceStub) set(id string, attrs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = attrs
}

func (s *userServiceStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/users/")

		s.mu.Lock()
		attrs, ok := s.users[id]
		s.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"user": attrs})
	})
}

func newTestClient() *testutil.Client {
	return testutil.NewClient(testServer.URL)
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	mailpitContainer, err = testutil.NewMailpitContainer(ctx)
	if err != nil {
		log.Fatalf("start mailpit: %v", err)
	}
	defer func() {
		if err := mailpitContainer.Terminate(ctx); err != nil {
			log.Printf("terminate mailpit: %v", err)
		}
	}()

	mailpitClient = NewMailpitClient(mailpitContainer.APIHost, mailpitContainer.APIPort)

	userDirectory = &userServiceStub{users: make(map[string]map[string]interface{})}
	userService := httptest.NewServer(userDirectory.handler())
	defer userService.Close()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         "0",
			MetricsPort:  "0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "text",
		},
		Database: config.DatabaseConfig{
			URL:             pgContainer.ConnectionString,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 3,
			MigrationsPath:  "../../migrations",
		},
		Notifications: config.NotificationsConfig{
			MaxRetries:  2,
			BackoffUnit: 10 * time.Millisecond,
			MaxBackoff:  100 * time.Millisecond,
			Worker: config.WorkerConfig{
				NumWorkers: 4,
				QueueSize:  64,
			},
			Email: config.EmailConfig{
				SMTPHost:    mailpitContainer.SMTPHost,
				SMTPPort:    mailpitContainer.SMTPPort,
				FromAddress: "ElectroMart <noreply@electromart.test>",
			},
			SMS: config.SMSConfig{
				// No gateway is running here; only the no-phone-number
				// path is exercised, which never contacts it.
				APIURL:     "http://127.0.0.1:1",
				AccountSID: "AC-test",
				AuthToken:  "test",
				FromNumber: "+15550000",
				Timeout:    time.Second,
			},
		},
		UserService: config.UserServiceConfig{
			BaseURL: userService.URL,
			Timeout: 5 * time.Second,
		},
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("create app: %v", err)
	}

	testDB, err = pgxpool.New(ctx, pgContainer.ConnectionString)
	if err != nil {
		log.Fatalf("create test db pool: %v", err)
	}

	testServer = httptest.NewServer(application.Router())

	code := m.Run()

	testServer.Close()
	testDB.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown app: %v", err)
	}

	os.Exit(code)
}

// countNotifications returns the number of notification rows for a user.
func countNotifications(t *testing.T, userID string) int {
	t.Helper()

	var count int
	err := testDB.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1", userID).Scan(&count)
	if err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return count
}

// waitForStatus polls until the notification reaches the wanted status.
func waitForStatus(t *testing.T, id, want string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var status, errorMessage string
		var record map[string]interface{}

		err := testDB.QueryRow(context.Background(),
			"SELECT status, COALESCE(error_message, '') FROM notifications WHERE id = $1", id).
			Scan(&status, &errorMessage)
		if err == nil && status == want {
			record = map[string]interface{}{
				"status":        status,
				"error_message": errorMessage,
			}
			return record
		}
		time.Sleep(25 * time.Millisecond)
	}

	t.Fatalf("notification %s did not reach status %q within deadline", id, want)
	return nil
}

// MailpitClient queries the Mailpit REST API for received messages.
type MailpitClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMailpitClient creates a Mailpit API client.
func NewMailpitClient(host string, port int) *MailpitClient {
	return &MailpitClient{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// MailpitMessage is one entry of the Mailpit message list.
type MailpitMessage struct {
	ID      string `json:"ID"`
	Subject string `json:"Subject"`
	To      []struct {
		Address string `json:"Address"`
	} `json:"To"`
}

type mailpitListResponse struct {
	Messages []MailpitMessage `json:"messages"`
}

// ListMessages returns all messages currently held by Mailpit.
func (c *MailpitClient) ListMessages() ([]MailpitMessage, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/v1/messages")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var list mailpitListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}
	return list.Messages, nil
}

// MessageBody returns the rendered HTML body of a message.
func (c *MailpitClient) MessageBody(id string) (string, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/v1/message/" + id)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var msg struct {
		HTML string `json:"HTML"`
		Text string `json:"Text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", err
	}
	if msg.HTML != "" {
		return msg.HTML, nil
	}
	return msg.Text, nil
}

// DeleteAllMessages clears the Mailpit mailbox.
func (c *MailpitClient) DeleteAllMessages() error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/api/v1/messages", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
