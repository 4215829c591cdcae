package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/giftdrop/backend/internal/services"
)

type MatchHandler struct {
	service *services.MatchingService
}

func NewMatchHandler(service *services.MatchingService) *MatchHandler {
	return &MatchHandler{service: service}
}

// TriggerMatch runs one matching cycle on demand
// @Summary Trigger a matching cycle
// @Description Run one pass of the drop matcher outside the schedule
// @Tags matching
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{matched_count=int}
// @Failure 500 {object} services.ErrorResponse
// @Router /internal/match [post]
func (h *MatchHandler) TriggerMatch(w http.ResponseWriter, r *http.Request) {
	matched, err := h.service.MatchPendingDrops(r.Context())
	if err != nil {
		services.SendErrorResponse(w, "Matching cycle failed", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"matched_count": matched})
}
