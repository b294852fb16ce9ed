package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"payverse/internal/middleware"
	"payverse/internal/models"
	"payverse/internal/services"

	"github.com/rs/zerolog"
)

type CashoutHandler struct {
	cashoutService *services.CashoutService
	logger         zerolog.Logger
}

func NewCashoutHandler(cashoutService *services.CashoutService, logger zerolog.Logger) *CashoutHandler {
	return &CashoutHandler{
		cashoutService: cashoutService,
		logger:         logger,
	}
}

func (h *CashoutHandler) CreateCashout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.CashoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	resp, err := h.cashoutService.Initiate(r.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			respondWithError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, services.ErrInsufficientBalance):
			respondWithError(w, http.StatusBadRequest, "insufficient_balance", "Insufficient custodian balance")
		case errors.Is(err, services.ErrWalletNotLinked):
			respondWithError(w, http.StatusConflict, "wallet_not_linked", "No linked custodian wallet")
		case errors.Is(err, services.ErrRefundFailed):
			// The payout failed and so did the compensating refund. The
			// response body carries the transaction id support will need.
			h.logger.Error().Err(err).Int("user_id", userID).Msg("Cash-out refund failed")
			respondWithJSON(w, http.StatusInternalServerError, resp)
		default:
			h.logger.Error().Err(err).Int("user_id", userID).Msg("Cash-out failed")
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to process cash-out")
		}
		return
	}

	code := http.StatusCreated
	if !resp.Success {
		code = http.StatusUnprocessableEntity
	}
	respondWithJSON(w, code, resp)
}
