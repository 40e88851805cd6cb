package notification

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thoriqulumar/kostan-be/internal/hub"
	"github.com/thoriqulumar/kostan-be/pkg/middleware"
	"github.com/thoriqulumar/kostan-be/pkg/response"
)

// Handler handles HTTP requests for notification operations
type Handler struct {
	service      *Service
	hub          *hub.Hub
	verifier     middleware.TokenVerifier
	writeTimeout time.Duration
	now          func() time.Time
}

// NewHandler creates a new notification handler
func NewHandler(service *Service, h *hub.Hub, verifier middleware.TokenVerifier, writeTimeout time.Duration) *Handler {
	return &Handler{
		service:      service,
		hub:          h,
		verifier:     verifier,
		writeTimeout: writeTimeout,
		now:          time.Now,
	}
}

// Routes returns the router for notification endpoints. The stream endpoint
// authenticates from its query string; everything else requires a bearer
// token. trigger, when non-nil, is mounted as the admin-only manual reminder
// sweep.
func (h *Handler) Routes(trigger http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	r.Get("/stream", h.Stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(h.verifier))

		r.Get("/", h.List)
		r.Get("/unread", h.ListUnread)
		r.Get("/unread/count", h.GetUnreadCount)
		r.Patch("/read-all", h.MarkAllAsRead)
		r.Patch("/{id}/read", h.MarkAsRead)
		r.Post("/test", h.SendTest)

		if trigger != nil {
			r.With(middleware.RequireRole(middleware.RoleAdmin)).
				Post("/trigger-payment-reminders", trigger)
		}
	})

	return r
}

func identityOf(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
	}
	return identity, ok
}

// List handles GET /notifications
// @Summary      List notifications
// @Description  Paginated notifications of the current user, newest first
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Param        unread_only query bool false "Only unread notifications"
// @Success      200 {object} response.APIResponse{data=[]NotificationResponse}
// @Router       /notifications [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOf(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	notifications, total, err := h.service.List(r.Context(), identity.UserID, page, perPage, unreadOnly)
	if err != nil {
		response.InternalError(w, "Failed to list notifications")
		return
	}

	response.JSONWithMeta(w, http.StatusOK, toResponses(notifications), response.NewMeta(page, perPage, total))
}

// ListUnread handles GET /notifications/unread
// @Summary      List unread notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=[]NotificationResponse}
// @Router       /notifications/unread [get]
func (h *Handler) ListUnread(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOf(w, r)
	if !ok {
		return
	}

	notifications, err := h.service.ListUnread(r.Context(), identity.UserID)
	if err != nil {
		response.InternalError(w, "Failed to list unread notifications")
		return
	}

	response.JSON(w, http.StatusOK, toResponses(notifications))
}

// GetUnreadCount handles GET /notifications/unread/count
// @Summary      Unread notification count
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=UnreadCountResponse}
// @Router       /notifications/unread/count [get]
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOf(w, r)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(r.Context(), identity.UserID)
	if err != nil {
		response.InternalError(w, "Failed to get unread count")
		return
	}

	response.JSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}

// MarkAsRead handles PATCH /notifications/{id}/read
// @Summary      Mark a notification as read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Notification ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /notifications/{id}/read [patch]
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid notification ID")
		return
	}

	identity, ok := identityOf(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkAsRead(r.Context(), id, identity.UserID); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		if errors.Is(err, ErrNotRecipient) {
			response.Forbidden(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to mark notification as read")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

// MarkAllAsRead handles PATCH /notifications/read-all
// @Summary      Mark all notifications as read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse
// @Router       /notifications/read-all [patch]
func (h *Handler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOf(w, r)
	if !ok {
		return
	}

	if _, err := h.service.MarkAllAsRead(r.Context(), identity.UserID); err != nil {
		response.InternalError(w, "Failed to mark all notifications as read")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "All notifications marked as read"})
}

// SendTest handles POST /notifications/test
// @Summary      Send a test notification to the current user
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      201 {object} response.APIResponse
// @Router       /notifications/test [post]
func (h *Handler) SendTest(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOf(w, r)
	if !ok {
		return
	}

	now := h.now()
	n, err := h.service.Create(r.Context(), identity.UserID, TestMessage{SentAt: now})
	if err != nil {
		response.InternalError(w, "Failed to send test notification")
		return
	}

	response.JSON(w, http.StatusCreated, map[string]string{
		"message":         "Test notification sent!",
		"user_id":         identity.UserID.String(),
		"notification_id": n.ID.String(),
		"timestamp":       now.UTC().Format(time.RFC3339),
	})
}
