package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"payverse/internal/middleware"
	"payverse/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type AdminHandler struct {
	adminService    *services.AdminService
	settingsService *services.SettingsService
	logger          zerolog.Logger
}

func NewAdminHandler(adminService *services.AdminService, settingsService *services.SettingsService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		settingsService: settingsService,
		logger:          logger,
	}
}

func (h *AdminHandler) ProcessCashin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	txID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid transaction id")
		return
	}

	result, err := h.adminService.ProcessCashin(r.Context(), actorID, txID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTransactionNotFound):
			respondWithError(w, http.StatusNotFound, "transaction_not_found", "Transaction not found")
		case errors.Is(err, services.ErrGatewayUnavailable):
			respondWithError(w, http.StatusBadGateway, "gateway_unavailable", "Payment gateway is unavailable")
		default:
			h.logger.Error().Err(err).Int("tx_id", txID).Msg("Admin process cash-in failed")
			respondWithError(w, http.StatusBadRequest, "process_failed", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"outcome": string(result.Outcome),
		"message": result.Message,
	})
}

func (h *AdminHandler) ProcessAllPending(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	result, err := h.adminService.ProcessAllPending(r.Context(), actorID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Admin pending sweep failed")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Pending sweep failed")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) DirectCredit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	txID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid transaction id")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "A reason is required for direct credit")
		return
	}

	txn, err := h.adminService.DirectCredit(r.Context(), actorID, txID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTransactionNotFound):
			respondWithError(w, http.StatusNotFound, "transaction_not_found", "Transaction not found")
		case errors.Is(err, services.ErrAlreadyClaimed):
			respondWithError(w, http.StatusConflict, "already_claimed", "Transaction is already being processed")
		default:
			h.logger.Error().Err(err).Int("tx_id", txID).Msg("Admin direct credit failed")
			respondWithError(w, http.StatusBadRequest, "direct_credit_failed", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"transaction": txn,
	})
}

// UpdateSettings rotates the NexusPay merchant credentials. The settings
// cache is invalidated inside the service, so new payouts pick up the rotated
// key without waiting out the TTL.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MerchantID string `json:"merchant_id"`
		SecretKey  string `json:"secret_key"`
		Username   string `json:"username"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if len(req.MerchantID) != 16 || len(req.SecretKey) != 16 {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Merchant id and secret key must be exactly 16 characters")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Username and password are required")
		return
	}

	if err := h.settingsService.UpdateSettings(r.Context(), req.MerchantID, req.SecretKey, req.Username, req.Password); err != nil {
		h.logger.Error().Err(err).Msg("Failed to update merchant settings")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to update settings")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	logs, err := h.adminService.ListAuditLogs(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list audit logs")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to list audit logs")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"audit_logs": logs,
		"offset":     offset,
	})
}
