package room

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thoriqulumar/kostan-be/internal/billing"
	"github.com/thoriqulumar/kostan-be/pkg/middleware"
	"github.com/thoriqulumar/kostan-be/pkg/response"
	"github.com/thoriqulumar/kostan-be/pkg/validate"
)

// Handler handles HTTP requests for room operations
type Handler struct {
	service *Service
}

// NewHandler creates a new room handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for room endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/mine", h.Mine)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(middleware.RoleAdmin))
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.GetByID)
		r.Put("/{id}/tenant", h.AssignTenant)
		r.Delete("/{id}/tenant", h.Vacate)
	})

	return r
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrNoRoomRented):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrRoomNameTaken), errors.Is(err, ErrRoomOccupied), errors.Is(err, ErrTenantHasRoom):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrInvalidRoom), errors.Is(err, ErrInvalidStartDate),
		errors.Is(err, ErrInvalidTenant), errors.Is(err, billing.ErrInvalidAmount):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

// Create handles POST /rooms
// @Summary      Create a room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateRoomRequest true "Room"
// @Success      201 {object} response.APIResponse{data=RoomResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /rooms [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, validate.Message(err))
		return
	}

	room, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeError(w, err, "Failed to create room")
		return
	}

	response.JSON(w, http.StatusCreated, room.ToResponse())
}

// List handles GET /rooms
// @Summary      List rooms
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=[]RoomResponse}
// @Router       /rooms [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.List(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to list rooms")
		return
	}

	roomResponses := make([]*RoomResponse, len(rooms))
	for i, room := range rooms {
		roomResponses[i] = room.ToResponse()
	}

	response.JSON(w, http.StatusOK, roomResponses)
}

// GetByID handles GET /rooms/{id}
// @Summary      Get room by ID
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Room ID"
// @Success      200 {object} response.APIResponse{data=RoomResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /rooms/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	room, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to get room")
		return
	}

	response.JSON(w, http.StatusOK, room.ToResponse())
}

// Mine handles GET /rooms/mine
// @Summary      Room rented by the current user
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=RoomResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /rooms/mine [get]
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	room, err := h.service.GetByTenant(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err, "Failed to get room")
		return
	}

	response.JSON(w, http.StatusOK, room.ToResponse())
}

// AssignTenant handles PUT /rooms/{id}/tenant
// @Summary      Rent a room to a user
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Room ID"
// @Param        request body AssignTenantRequest true "Tenant"
// @Success      200 {object} response.APIResponse{data=RoomResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /rooms/{id}/tenant [put]
func (h *Handler) AssignTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	var req AssignTenantRequest
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, validate.Message(err))
		return
	}

	room, err := h.service.AssignTenant(r.Context(), id, &req)
	if err != nil {
		writeError(w, err, "Failed to assign tenant")
		return
	}

	response.JSON(w, http.StatusOK, room.ToResponse())
}

// Vacate handles DELETE /rooms/{id}/tenant
// @Summary      End a tenancy
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Room ID"
// @Success      200 {object} response.APIResponse{data=RoomResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /rooms/{id}/tenant [delete]
func (h *Handler) Vacate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	room, err := h.service.Vacate(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to vacate room")
		return
	}

	response.JSON(w, http.StatusOK, room.ToResponse())
}
