package handlers

import (
	"encoding/json"
	"net/http"

	"payverse/internal/models"
	"payverse/internal/services"

	"github.com/rs/zerolog"
)

// WebhookHandler receives payment notifications from the gateway. It always
// answers 200 with {"received": true}: the gateway treats any other status as
// delivery failure and retries, and a retried webhook for a transaction we
// already rejected is pure noise. The confirm outcome travels in the body,
// not the status code.
type WebhookHandler struct {
	cashinService *services.CashinService
	logger        zerolog.Logger
}

func NewWebhookHandler(cashinService *services.CashinService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cashinService: cashinService,
		logger:        logger,
	}
}

func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn().Err(err).Msg("Webhook with undecodable body")
		h.acknowledge(w, map[string]interface{}{"received": true, "error": "invalid payload"})
		return
	}

	refID := payload.ReferenceID()
	if refID == "" {
		h.logger.Warn().Msg("Webhook without a transaction reference")
		h.acknowledge(w, map[string]interface{}{"received": true, "error": "missing transaction id"})
		return
	}

	result, err := h.cashinService.ConfirmAndCredit(r.Context(), refID, payload.ReportedStatus(), payload.ReportedAmount())
	if err != nil {
		h.logger.Error().Err(err).Str("gateway_tx", refID).Msg("Webhook confirmation errored")
		h.acknowledge(w, map[string]interface{}{"received": true, "error": "processing failed"})
		return
	}

	h.logger.Info().
		Str("gateway_tx", refID).
		Str("outcome", string(result.Outcome)).
		Msg("Webhook processed")

	body := map[string]interface{}{"received": true, "outcome": string(result.Outcome)}
	if result.Outcome == services.ConfirmRejected {
		body["error"] = result.Message
	}
	h.acknowledge(w, body)
}

func (h *WebhookHandler) acknowledge(w http.ResponseWriter, body map[string]interface{}) {
	respondWithJSON(w, http.StatusOK, body)
}
