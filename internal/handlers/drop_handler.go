package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/giftdrop/backend/internal/models"
	"github.com/giftdrop/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type DropHandler struct {
	service   *services.DropService
	validator *services.ValidationHelper
}

func NewDropHandler(service *services.DropService) *DropHandler {
	return &DropHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateDrop creates a pending drop
// @Summary Create a drop
// @Description Create a pending micro-gift that the matcher will pair
// @Tags drops
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateDropRequest true "Drop request"
// @Success 201 {object} models.Drop
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /drops [post]
func (h *DropHandler) CreateDrop(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.CreateDropRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	drop, err := h.service.CreateDrop(r.Context(), userID, req.Amount, req.Message)
	if err != nil {
		services.SendErrorResponse(w, "Failed to create drop", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(drop)
}

// ListDrops lists the caller's drops
// @Summary List drops
// @Description List the authenticated user's drops, newest first
// @Tags drops
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Drop
// @Failure 401 {object} services.ErrorResponse
// @Router /drops [get]
func (h *DropHandler) ListDrops(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	drops, err := h.service.ListUserDrops(r.Context(), userID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to fetch drops", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"drops": drops,
		"count": len(drops),
	})
}

// ConfirmPaid marks a matched drop as paid and credits the caller
// @Summary Confirm drop receipt
// @Description Transition a matched drop to paid and credit the wallet
// @Tags drops
// @Produce json
// @Security BearerAuth
// @Param dropID path string true "Drop ID"
// @Success 200 {object} object{status=string}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /drops/{dropID}/confirm [post]
func (h *DropHandler) ConfirmPaid(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	dropID, err := uuid.Parse(chi.URLParam(r, "dropID"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid drop ID", http.StatusBadRequest, nil)
		return
	}

	if err := h.service.ConfirmDropPaid(r.Context(), dropID, userID); err != nil {
		switch {
		case errors.Is(err, services.ErrDropNotFound):
			services.SendErrorResponse(w, "Drop not found", http.StatusNotFound, nil)
		case errors.Is(err, services.ErrMatchConflict):
			services.SendErrorResponse(w, "Drop is not in matched state", http.StatusConflict, nil)
		default:
			services.SendErrorResponse(w, "Failed to confirm drop", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "paid"})
}

// CollectQR generates a UPI collect QR code
// @Summary Generate collect QR
// @Description Generate a UPI collect QR for a payout destination
// @Tags drops
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{destination=string} true "QR request"
// @Success 200 {object} object{payload=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /drops/collect-qr [post]
func (h *DropHandler) CollectQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Destination string `json:"destination" validate:"required,max=256"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	payload, qrImage, err := h.service.GenerateCollectQR(r.Context(), userID, req.Destination)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDestination) {
			services.SendErrorResponse(w, "Invalid payout destination", http.StatusBadRequest, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"payload": payload,
		"qrImage": qrImage,
	})
}
