package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"nestdrive/internal/auth"
	"nestdrive/internal/service"
)

type QuotaHandler struct {
	quotaService *service.StorageQuotaService
}

func NewQuotaHandler(quotaService *service.StorageQuotaService) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService}
}

func (h *QuotaHandler) GetQuotaInfo(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	usage, err := h.quotaService.QuotaAndUsage(r.Context(), user.ID)
	if err != nil {
		log.Printf("[QuotaHandler] Failed to get quota for %s: %v", user.ID, err)
		http.Error(w, "Failed to get quota info", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

type updateQuotaLimitRequest struct {
	OwnerID  string `json:"owner_id"`
	NewLimit int64  `json:"new_limit"`
}

func (h *QuotaHandler) UpdateQuotaLimit(w http.ResponseWriter, r *http.Request) {
	var req updateQuotaLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewLimit <= 0 {
		http.Error(w, "new_limit must be positive", http.StatusBadRequest)
		return
	}

	if err := h.quotaService.UpdateQuotaLimit(r.Context(), req.OwnerID, req.NewLimit); err != nil {
		log.Printf("[QuotaHandler] Failed to update quota limit for %s: %v", req.OwnerID, err)
		http.Error(w, "Failed to update quota limit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
