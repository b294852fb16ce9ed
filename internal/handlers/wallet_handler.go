package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"payverse/internal/middleware"
	"payverse/internal/models"
	"payverse/internal/services"

	"github.com/rs/zerolog"
)

type WalletHandler struct {
	ledger    *services.LedgerService
	users     *services.UserService
	custodian services.CustodianClient
	logger    zerolog.Logger
}

func NewWalletHandler(ledger *services.LedgerService, users *services.UserService, custodian services.CustodianClient, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		users:     users,
		custodian: custodian,
		logger:    logger,
	}
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	balance, fiat, phpt, err := h.ledger.GetBalances(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to fetch balances")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch balance")
		return
	}

	respondWithJSON(w, http.StatusOK, &models.BalanceResponse{
		UserID:      userID,
		Balance:     balance.StringFixed(2),
		FiatBalance: fiat.StringFixed(2),
		PhptBalance: phpt.StringFixed(2),
	})
}

func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := h.ledger.GetUserTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to fetch transactions")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch transactions")
		return
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"limit":        limit,
		"offset":       offset,
	})
}

// LinkWallet associates the user with a PayGram handle. The handle is probed
// with a balance query first; linking a handle the custodian does not know
// would make every future cash-in defer.
func (h *WalletHandler) LinkWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req struct {
		PaygramUserID string `json:"paygram_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaygramUserID == "" {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "A paygram_user_id is required")
		return
	}

	if _, err := h.custodian.GetBalance(r.Context(), req.PaygramUserID); err != nil {
		h.logger.Warn().Err(err).Int("user_id", userID).Str("handle", req.PaygramUserID).Msg("Custodian handle probe failed")
		respondWithError(w, http.StatusUnprocessableEntity, "invalid_handle", "The custodian does not recognize that wallet")
		return
	}

	if err := h.users.LinkWallet(r.Context(), userID, req.PaygramUserID); err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to link wallet")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to link wallet")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"paygram_user_id": req.PaygramUserID,
	})
}
