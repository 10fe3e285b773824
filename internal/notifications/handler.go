package notifications

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/electromart/notification-service/internal/domain"
	"github.com/electromart/notification-service/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrChannelDisabled, Status: http.StatusBadRequest},
	{Error: ErrInvalidChannel, Status: http.StatusBadRequest, Message: "unknown notification channel"},
	{Error: ErrNotificationNotFound, Status: http.StatusNotFound, Message: "notification not found"},
	{Error: ErrPreferencesNotFound, Status: http.StatusNotFound, Message: "preferences not found"},
}

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers notification and preference routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Post("/send", h.Send)
		r.Post("/bulk", h.SendBulk)
		r.Get("/{userID}", h.ListByUser)
	})

	r.Route("/preferences/{userID}", func(r chi.Router) {
		r.Get("/", h.GetPreferences)
		r.Put("/", h.UpdatePreferences)
	})
}

// SendNotificationRequest represents the request body for a single intent.
type SendNotificationRequest struct {
	UserID       string            `json:"user_id" validate:"required"`
	Channel      string            `json:"channel" validate:"required,oneof=email sms push"`
	Subject      string            `json:"subject" validate:"required"`
	Message      string            `json:"message" validate:"required"`
	Template     string            `json:"template,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Priority     string            `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	ScheduledAt  *time.Time        `json:"scheduled_at,omitempty"`
}

func (r *SendNotificationRequest) toInput() SendInput {
	return SendInput{
		UserID:       r.UserID,
		Channel:      domain.Channel(r.Channel),
		Subject:      r.Subject,
		Message:      r.Message,
		Template:     r.Template,
		TemplateData: r.TemplateData,
		Priority:     domain.Priority(r.Priority),
		ScheduledAt:  r.ScheduledAt,
	}
}

// UpdatePreferencesRequest represents the request body for replacing a
// user's preference record.
type UpdatePreferencesRequest struct {
	EmailEnabled      bool `json:"email_enabled"`
	SMSEnabled        bool `json:"sms_enabled"`
	PushEnabled       bool `json:"push_enabled"`
	MarketingEmails   bool `json:"marketing_emails"`
	OrderUpdates      bool `json:"order_updates"`
	PromotionalOffers bool `json:"promotional_offers"`
}

// Send handles POST /notifications/send.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	n, err := h.service.Send(r.Context(), req.toInput())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"id":     n.ID,
		"status": string(n.Status),
	})
}

// SendBulk handles POST /notifications/bulk.
func (h *Handler) SendBulk(w http.ResponseWriter, r *http.Request) {
	var reqs []SendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	inputs := make([]SendInput, 0, len(reqs))
	for _, req := range reqs {
		if err := h.validator.Struct(req); err != nil {
			httputil.ValidationError(w, err)
			return
		}
		inputs = append(inputs, req.toInput())
	}

	results := h.service.SendBulk(r.Context(), inputs)

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// ListByUser handles GET /notifications/{userID}.
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	filter := ListFilter{Page: 1, Limit: 20}

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			httputil.Error(w, http.StatusBadRequest, "invalid page")
			return
		}
		filter.Page = page
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 100 {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.Status(v)
		if !status.Valid() {
			httputil.Error(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = &status
	}

	items, total, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	pages := (total + filter.Limit - 1) / filter.Limit

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"notifications": items,
		"total":         total,
		"page":          filter.Page,
		"limit":         filter.Limit,
		"pages":         pages,
	})
}

// GetPreferences handles GET /preferences/{userID}.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	prefs, err := h.service.GetPreferences(r.Context(), userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /preferences/{userID}.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	prefs, err := h.service.UpdatePreferences(r.Context(), &domain.Preferences{
		UserID:            userID,
		EmailEnabled:      req.EmailEnabled,
		SMSEnabled:        req.SMSEnabled,
		PushEnabled:       req.PushEnabled,
		MarketingEmails:   req.MarketingEmails,
		OrderUpdates:      req.OrderUpdates,
		PromotionalOffers: req.PromotionalOffers,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, prefs)
}
