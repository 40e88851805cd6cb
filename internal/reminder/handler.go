package reminder

import (
	"net/http"
	"time"

	"github.com/thoriqulumar/kostan-be/pkg/response"
)

// Handler exposes the manual sweep over HTTP
type Handler struct {
	service *Service
}

// NewHandler creates a new reminder handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TriggerResponse is returned by a manual sweep
type TriggerResponse struct {
	Message   string  `json:"message"`
	Timestamp string  `json:"timestamp"`
	Summary   Summary `json:"summary"`
}

// Trigger handles POST /notifications/trigger-payment-reminders
// @Summary      Run the payment reminder sweep now
// @Description  Runs the same sweep as the daily schedule (admin only)
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=TriggerResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /notifications/trigger-payment-reminders [post]
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Run(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to trigger payment reminders")
		return
	}

	response.JSON(w, http.StatusOK, TriggerResponse{
		Message:   "Payment reminders triggered successfully",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:   summary,
	})
}
