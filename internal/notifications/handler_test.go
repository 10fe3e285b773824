package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/electromart/notification-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*chi.Mux, *memRepo, *stubQueue) {
	t.Helper()

	repo := newMemRepo()
	prefs := newMemPrefs()
	queue := &stubQueue{}
	handler := NewHandler(newTestService(repo, prefs, queue))

	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return router, repo, queue
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		require.NoError(t, json.NewEncoder(reqBody).Encode(body))
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Send(t *testing.T) {
	router, repo, queue := newTestHandler(t)

	rec := doJSON(t, router, "POST", "/api/v1/notifications/send", map[string]interface{}{
		"user_id": "user-1",
		"channel": "email",
		"subject": "Order shipped",
		"message": "On its way",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])
	assert.Equal(t, "pending", resp["status"])

	stored := repo.get(resp["id"])
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, []string{resp["id"]}, queue.enqueued())
}

func TestHandler_Send_ValidationErrors(t *testing.T) {
	router, _, _ := newTestHandler(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing user_id", map[string]interface{}{
			"channel": "email", "subject": "s", "message": "m",
		}},
		{"missing subject", map[string]interface{}{
			"user_id": "u", "channel": "email", "message": "m",
		}},
		{"bad channel", map[string]interface{}{
			"user_id": "u", "channel": "fax", "subject": "s", "message": "m",
		}},
		{"bad priority", map[string]interface{}{
			"user_id": "u", "channel": "email", "subject": "s", "message": "m",
			"priority": "asap",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, "POST", "/api/v1/notifications/send", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_Send_InvalidJSON(t *testing.T) {
	router, _, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/notifications/send", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Send_DisabledChannel(t *testing.T) {
	router, repo, _ := newTestHandler(t)

	rec := doJSON(t, router, "POST", "/api/v1/notifications/send", map[string]interface{}{
		"user_id": "user-1",
		"channel": "sms",
		"subject": "s",
		"message": "m",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sms notifications are disabled", resp["error"]["message"])

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestHandler_SendBulk(t *testing.T) {
	router, _, queue := newTestHandler(t)

	rec := doJSON(t, router, "POST", "/api/v1/notifications/bulk", []map[string]interface{}{
		{"user_id": "user-1", "channel": "email", "subject": "a", "message": "a"},
		{"user_id": "user-2", "channel": "sms", "subject": "b", "message": "b"},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []BulkResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "queued", resp.Results[0].Status)
	assert.NotEmpty(t, resp.Results[0].NotificationID)
	assert.Equal(t, "failed", resp.Results[1].Status)
	assert.Equal(t, "sms notifications are disabled", resp.Results[1].Error)

	assert.Len(t, queue.enqueued(), 1)
}

func TestHandler_ListByUser(t *testing.T) {
	router, _, _ := newTestHandler(t)

	for i := 0; i < 5; i++ {
		rec := doJSON(t, router, "POST", "/api/v1/notifications/send", map[string]interface{}{
			"user_id": "user-1", "channel": "email", "subject": "s", "message": "m",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, router, "GET", "/api/v1/notifications/user-1?page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Notifications []domain.Notification `json:"notifications"`
		Total         int                   `json:"total"`
		Page          int                   `json:"page"`
		Limit         int                   `json:"limit"`
		Pages         int                   `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Len(t, resp.Notifications, 2)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 3, resp.Pages)
}

func TestHandler_ListByUser_BadQueryParams(t *testing.T) {
	router, _, _ := newTestHandler(t)

	tests := []struct {
		name string
		path string
	}{
		{"page not a number", "/api/v1/notifications/user-1?page=x"},
		{"page below one", "/api/v1/notifications/user-1?page=0"},
		{"limit too large", "/api/v1/notifications/user-1?limit=500"},
		{"unknown status", "/api/v1/notifications/user-1?status=bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, "GET", tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_ListByUser_StatusFilter(t *testing.T) {
	router, repo, _ := newTestHandler(t)

	rec := doJSON(t, router, "POST", "/api/v1/notifications/send", map[string]interface{}{
		"user_id": "user-1", "channel": "email", "subject": "s", "message": "m",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	empty := ""
	require.NoError(t, repo.UpdateStatus(context.Background(), sent["id"], StatusUpdate{
		Status: domain.StatusFailed, ErrorMessage: &empty,
	}))

	rec = doJSON(t, router, "GET", "/api/v1/notifications/user-1?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)

	rec = doJSON(t, router, "GET", "/api/v1/notifications/user-1?status=sent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)
}

func TestHandler_GetPreferences_Defaults(t *testing.T) {
	router, _, _ := newTestHandler(t)

	rec := doJSON(t, router, "GET", "/api/v1/preferences/user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var prefs domain.Preferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	assert.Equal(t, "user-1", prefs.UserID)
	assert.True(t, prefs.EmailEnabled)
	assert.False(t, prefs.SMSEnabled)
}

func TestHandler_UpdatePreferences(t *testing.T) {
	router, _, _ := newTestHandler(t)

	rec := doJSON(t, router, "PUT", "/api/v1/preferences/user-1", map[string]bool{
		"email_enabled":      false,
		"sms_enabled":        true,
		"push_enabled":       true,
		"marketing_emails":   false,
		"order_updates":      true,
		"promotional_offers": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var prefs domain.Preferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	assert.False(t, prefs.EmailEnabled)
	assert.True(t, prefs.SMSEnabled)

	// The update must stick
	rec = doJSON(t, router, "GET", "/api/v1/preferences/user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	assert.False(t, prefs.EmailEnabled)
	assert.True(t, prefs.SMSEnabled)
}
