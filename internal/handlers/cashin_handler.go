package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"payverse/internal/middleware"
	"payverse/internal/models"
	"payverse/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type CashinHandler struct {
	cashinService *services.CashinService
	logger        zerolog.Logger
}

func NewCashinHandler(cashinService *services.CashinService, logger zerolog.Logger) *CashinHandler {
	return &CashinHandler{
		cashinService: cashinService,
		logger:        logger,
	}
}

func (h *CashinHandler) CreateCashin(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.CashinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	resp, err := h.cashinService.Initiate(r.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			respondWithError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		case errors.Is(err, services.ErrGatewayUnavailable):
			respondWithError(w, http.StatusBadGateway, "gateway_unavailable", "Payment gateway is unavailable, try again later")
		default:
			h.logger.Error().Err(err).Int("user_id", userID).Msg("Cash-in initiation failed")
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to initiate cash-in")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *CashinHandler) CashinStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserID(r); !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	gatewayTxID := mux.Vars(r)["transactionId"]
	if gatewayTxID == "" {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Transaction id is required")
		return
	}

	resp, err := h.cashinService.PollStatus(r.Context(), gatewayTxID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTransactionNotFound):
			respondWithError(w, http.StatusNotFound, "transaction_not_found", "Transaction not found")
		case errors.Is(err, services.ErrGatewayUnavailable):
			respondWithError(w, http.StatusBadGateway, "gateway_unavailable", "Payment gateway is unavailable, try again later")
		default:
			h.logger.Error().Err(err).Str("gateway_tx", gatewayTxID).Msg("Cash-in status check failed")
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to check status")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
