package notification

import (
	"net/http"
	"strings"

	"github.com/thoriqulumar/kostan-be/internal/hub"
	"github.com/thoriqulumar/kostan-be/pkg/middleware"
	"github.com/thoriqulumar/kostan-be/pkg/response"
)

// Stream handles GET /notifications/stream
// @Summary      Live notification stream
// @Description  Server-sent events: connected, unread_count, notification and a heartbeat comment every 30s
// @Tags         notifications
// @Produce      text/event-stream
// @Param        token query string true "Access token"
// @Success      200 {string} string "event stream"
// @Failure      401 {object} response.APIResponse
// @Router       /notifications/stream [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = middleware.BearerToken(r)
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	ctx := r.Context()
	conn := hub.NewSSEConn(w, h.writeTimeout)
	defer conn.Close()

	// connected goes out before the hub can route pushes here.
	connected, err := hub.NewFrame(hub.EventConnected, map[string]string{
		"message": "Connected to notifications stream",
	})
	if err != nil || conn.WriteFrame(connected) != nil {
		return
	}

	handle := h.hub.Register(identity.UserID, conn)
	defer h.hub.Unregister(handle)

	count, err := h.service.UnreadCount(ctx, identity.UserID)
	if err != nil {
		h.service.logger.Warn("failed to load unread count for stream", "user_id", identity.UserID, "error", err)
	} else if err := h.hub.Send(handle, hub.EventUnreadCount, UnreadCountResponse{Count: count}); err != nil {
		return
	}

	select {
	case <-ctx.Done():
	case <-handle.Done():
	case <-h.hub.Closing():
	}
}
