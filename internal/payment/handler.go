package payment

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thoriqulumar/kostan-be/internal/billing"
	"github.com/thoriqulumar/kostan-be/internal/storage"
	"github.com/thoriqulumar/kostan-be/pkg/middleware"
	"github.com/thoriqulumar/kostan-be/pkg/response"
	"github.com/thoriqulumar/kostan-be/pkg/validate"
)

// multipart overhead allowed on top of the image itself
const formOverhead = 1 << 20

// Handler handles HTTP requests for payment operations
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for payment endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upload-receipt", h.Upload)
	r.Get("/my-payments", h.ListMine)
	r.Get("/receipts/room/{roomId}", h.ListByRoom)
	r.Get("/receipt/room/{roomId}/latest", h.LatestImageByRoom)
	r.Get("/receipt/{id}/image", h.Image)
	r.Delete("/receipt/{id}", h.Delete)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(middleware.RoleAdmin))
		r.Get("/pending", h.ListPending)
		r.Get("/all", h.ListAll)
		r.Get("/income/report", h.IncomeReport)
		r.Get("/income/summary", h.IncomeSummary)
		r.Get("/{id}", h.GetByID)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
	})

	return r
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrReceiptNotFound), errors.Is(err, ErrNoReceiptsForRoom),
		errors.Is(err, ErrReceiptFileMissing), errors.Is(err, ErrNoRoomRented),
		errors.Is(err, ErrRoomNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrAlreadyApproved), errors.Is(err, ErrAlreadyRejected),
		errors.Is(err, ErrPeriodAlreadyApproved), errors.Is(err, ErrInvalidStatusChange):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrCannotDeleteApproved):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrAmountMismatch), errors.Is(err, ErrReasonRequired),
		errors.Is(err, billing.ErrInvalidMonth), errors.Is(err, billing.ErrInvalidYear),
		errors.Is(err, billing.ErrInvalidAmount), errors.Is(err, storage.ErrUnsupportedType):
		response.BadRequest(w, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		response.PayloadTooLarge(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

func viewerOf(w http.ResponseWriter, r *http.Request) (Viewer, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return Viewer{}, false
	}
	return Viewer{UserID: identity.UserID, IsAdmin: identity.IsAdmin()}, true
}

func parseID(w http.ResponseWriter, r *http.Request, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.BadRequest(w, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// formValue reads a form field by its snake_case name, falling back to the
// camelCase name older clients send
func formValue(r *http.Request, name, legacy string) string {
	if v := r.FormValue(name); v != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(r.FormValue(legacy))
}

// Upload handles POST /payments/upload-receipt
// @Summary      Upload a payment receipt
// @Description  Multipart upload of a receipt image (jpg, jpeg, png, gif, webp; max 5MB) for the room the caller rents
// @Tags         payments
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "Receipt image"
// @Param        payment_month formData int true "Billing month (1-12)"
// @Param        payment_year formData int true "Billing year"
// @Param        amount formData number true "Amount paid"
// @Param        description formData string false "Description"
// @Success      201 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Failure      413 {object} response.APIResponse
// @Router       /payments/upload-receipt [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerOf(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+formOverhead)
	if err := r.ParseMultipartForm(storage.MaxImageSize + formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(w, storage.ErrTooLarge.Error())
			return
		}
		response.BadRequest(w, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "Receipt file is required")
		return
	}
	defer file.Close()

	month, err := strconv.Atoi(formValue(r, "payment_month", "paymentMonth"))
	if err != nil {
		response.BadRequest(w, billing.ErrInvalidMonth.Error())
		return
	}
	year, err := strconv.Atoi(formValue(r, "payment_year", "paymentYear"))
	if err != nil {
		response.BadRequest(w, billing.ErrInvalidYear.Error())
		return
	}
	amount, err := decimal.NewFromString(formValue(r, "amount", "amount"))
	if err != nil {
		response.BadRequest(w, billing.ErrInvalidAmount.Error())
		return
	}

	req := &UploadReceiptRequest{
		PaymentMonth: month,
		PaymentYear:  year,
		Amount:       amount,
		Description:  r.FormValue("description"),
	}

	receipt, err := h.service.Upload(r.Context(), viewer.UserID, req, header.Filename, file)
	if err != nil {
		writeError(w, err, "Failed to upload payment receipt")
		return
	}

	response.JSON(w, http.StatusCreated, receipt.ToResponse())
}

// ListMine handles GET /payments/my-payments
// @Summary      Payment history of the current user
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=[]ReceiptResponse}
// @Router       /payments/my-payments [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerOf(w, r)
	if !ok {
		return
	}

	receipts, err := h.service.ListMine(r.Context(), viewer.UserID)
	if err != nil {
		response.InternalError(w, "Failed to list payments")
		return
	}

	response.JSON(w, http.StatusOK, toReceiptResponses(receipts))
}

// ListPending handles GET /payments/pending
// @Summary      Receipts awaiting review
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=[]ReceiptResponse}
// @Router       /payments/pending [get]
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.service.ListPending(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to list pending payments")
		return
	}

	response.JSON(w, http.StatusOK, toReceiptResponses(receipts))
}

// ListAll handles GET /payments/all
// @Summary      All receipts
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=[]ReceiptResponse}
// @Router       /payments/all [get]
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.service.ListAll(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to list payments")
		return
	}

	response.JSON(w, http.StatusOK, toReceiptResponses(receipts))
}

// GetByID handles GET /payments/{id}
// @Summary      Get a receipt
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Receipt ID"
// @Success      200 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /payments/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "receipt")
	if !ok {
		return
	}

	receipt, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to get payment")
		return
	}

	response.JSON(w, http.StatusOK, receipt.ToResponse())
}

// Approve handles POST /payments/{id}/approve
// @Summary      Approve a receipt
// @Description  Records the income entry and notifies the tenant
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Receipt ID"
// @Success      200 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /payments/{id}/approve [post]
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "receipt")
	if !ok {
		return
	}
	viewer, ok := viewerOf(w, r)
	if !ok {
		return
	}

	receipt, err := h.service.Approve(r.Context(), id, viewer.UserID)
	if err != nil {
		writeError(w, err, "Failed to approve payment")
		return
	}

	response.JSON(w, http.StatusOK, receipt.ToResponse())
}

// Reject handles POST /payments/{id}/reject
// @Summary      Reject a receipt
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Receipt ID"
// @Param        request body RejectRequest true "Reason"
// @Success      200 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /payments/{id}/reject [post]
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "receipt")
	if !ok {
		return
	}
	viewer, ok := viewerOf(w, r)
	if !ok {
		return
	}

	var req RejectRequest
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, validate.Message(err))
		return
	}

	receipt, err := h.service.Reject(r.Context(), id, viewer.UserID, req.RejectionReason)
	if err != nil {
		writeError(w, err, "Failed to reject payment")
		return
	}

	response.JSON(w, http.StatusOK, receipt.ToResponse())
}

// ListByRoom handles GET /payments/receipts/room/{roomId}
// @Summary      Receipts of a room
// @Description  Admins see every receipt of the room, tenants only their own
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        roomId path string true "Room ID"
// @Success      200 {object} response.APIResponse{data=[]ReceiptResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /payments/receipts/room/{roomId} [get]
func (h *Handler) ListByRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := parseID(w, r, "roomId", "room")
	if !ok {
		return
	}
	viewer, ok := viewerOf(w, r)
	if !ok {
		return
	}

	receipts, err := h.service.ListByRoom(r.Context(), roomID, viewer)
	if err != nil {
		writeError(w, err, "Failed to list receipts")
		return
	}

	response.JSON(w, http.StatusOK, toReceiptResponses(receipts))
}

// LatestImageByRoom handles GET /payments/receipt/room/{roomId}/latest
// @Summary      Latest receipt image of a room
// @Tags         payments
// @Produce      image/jpeg,image/png,image/gif,image/webp
// @Security     BearerAuth
// @Param        roomId path string true "Room ID"
// @Success      200 {file} file
// @Failure      404 {object} response.APIResponse
// @Router       /payments/receipt/room/{roomId}/latest [get]
func (h *Handler) LatestImageByRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := parseID(w, r, "roomId", "room")
	if !ok {
		return
	}
	viewer, ok := viewerOf(w, r)
	if !ok {
		return
	}

	receipt, err := h.service.LatestByRoom(r.Context(), roomID, viewer)
	if err != nil {
		writeError(w, err, "Failed to get receipt")
		return
	}
	h.serveImage(w, r, receipt)
}

// Image handles GET /payments/receipt/{id}/image
// @Summary      Receipt image
// @Tags         payments
// @Produce      image/jpeg,image/png,image/gif,image/webp
// @Security     BearerAuth
// @Param        id path string true "Receipt ID"
// @Success      200 {file} file
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /payments/receipt/{id}/image [get]
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "receipt")
	if !ok {
		return
	}
	viewer, ok := viewerOf(w, r)
	if !ok {
		return
	}

	receipt, err := h.service.ReceiptForViewer(r.Context(), id, viewer)
	if err != nil {
		writeError(w, err, "Failed to get receipt")
		return
	}
	h.serveImage(w, r, receipt)
}

func (h *Handler) serveImage(w http.ResponseWriter, r *http.Request, receipt *Receipt) {
	f, err := h.service.OpenImage(receipt)
	if err != nil {
		writeError(w, err, "Failed to open receipt image")
		return
	}
	defer f.Close()

	ext := strings.ToLower(path.Ext(receipt.ReceiptFilePath))
	name := fmt.Sprintf("receipt-%s%s", receipt.ID, ext)
	w.Header().Set("Content-Type", storage.ContentType(receipt.ReceiptFilePath))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, name))
	http.ServeContent(w, r, name, receipt.UpdatedAt, f)
}

// Delete handles DELETE /payments/receipt/{id}
// @Summary      Delete a receipt
// @Description  Tenants delete their own receipts, admins any; approved receipts are kept
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Receipt ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /payments/receipt/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "receipt")
	if !ok {
		return
	}
	viewer, ok := viewerOf(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, viewer); err != nil {
		writeError(w, err, "Failed to delete receipt")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Payment receipt deleted successfully"})
}

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return 0, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < billing.MinYear {
		response.BadRequest(w, billing.ErrInvalidYear.Error())
		return 0, false
	}
	return year, true
}

// IncomeReport handles GET /payments/income/report
// @Summary      Income ledger
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        year query int false "Billing year"
// @Success      200 {object} response.APIResponse{data=[]IncomeResponse}
// @Router       /payments/income/report [get]
func (h *Handler) IncomeReport(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	incomes, err := h.service.IncomeReport(r.Context(), year)
	if err != nil {
		response.InternalError(w, "Failed to get income report")
		return
	}

	out := make([]*IncomeResponse, len(incomes))
	for i, inc := range incomes {
		out[i] = inc.ToResponse()
	}
	response.JSON(w, http.StatusOK, out)
}

// IncomeSummary handles GET /payments/income/summary
// @Summary      Income totals per month
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        year query int false "Billing year"
// @Success      200 {object} response.APIResponse{data=IncomeSummaryResponse}
// @Router       /payments/income/summary [get]
func (h *Handler) IncomeSummary(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	summary, err := h.service.IncomeSummary(r.Context(), year)
	if err != nil {
		response.InternalError(w, "Failed to get income summary")
		return
	}

	response.JSON(w, http.StatusOK, summary.ToResponse())
}
