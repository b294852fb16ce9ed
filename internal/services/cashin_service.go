package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"payverse/internal/models"
	"payverse/internal/nexuspay"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Platform minimum for a QR deposit, in PHP.
var minCashinAmount = decimal.NewFromInt(100)

// ConfirmOutcome tells the caller what happened to a confirmation attempt.
// Webhook, poll and admin remediation all receive one of these; none of them
// treats a duplicate as an error.
type ConfirmOutcome string

const (
	// ConfirmCredited: this invocation won the claim and credited the user.
	ConfirmCredited ConfirmOutcome = "credited"
	// ConfirmRejected: the reported status or amount was not acceptable.
	ConfirmRejected ConfirmOutcome = "rejected"
	// ConfirmUnmatched: no local pending transaction correlates to the id.
	ConfirmUnmatched ConfirmOutcome = "unmatched"
	// ConfirmAlreadyCompleted: idempotent no-op, the credit already happened.
	ConfirmAlreadyCompleted ConfirmOutcome = "already_completed"
	// ConfirmInProgress: another caller holds the claim right now.
	ConfirmInProgress ConfirmOutcome = "in_progress"
	// ConfirmDeferred: the custodian transfer failed after bounded retries;
	// the row went back to pending for a later attempt.
	ConfirmDeferred ConfirmOutcome = "deferred"
)

type ConfirmResult struct {
	Outcome     ConfirmOutcome
	Message     string
	Transaction *models.Transaction
}

// CashinService drives a QR deposit from creation through gateway
// confirmation to the local credit. The confirm-and-credit procedure is one
// routine shared by the webhook handler, the status poll and admin
// remediation; the pending->processing claim in the ledger is the only thing
// that serializes them.
type CashinService struct {
	ledger    *LedgerService
	users     *UserService
	custodian CustodianClient
	sessions  GatewaySessions
	gateway   GatewayClient
	logger    zerolog.Logger

	publicBaseURL string
	retryDelays   []time.Duration
}

func NewCashinService(ledger *LedgerService, users *UserService, custodian CustodianClient, sessions GatewaySessions, gateway GatewayClient, publicBaseURL string, logger zerolog.Logger) *CashinService {
	return &CashinService{
		ledger:        ledger,
		users:         users,
		custodian:     custodian,
		sessions:      sessions,
		gateway:       gateway,
		logger:        logger,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		retryDelays:   []time.Duration{time.Second, 2 * time.Second},
	}
}

// Initiate creates the gateway cash-in and the local pending row, and returns
// the hosted payment URL for the user.
func (s *CashinService) Initiate(ctx context.Context, userID int, amount decimal.Decimal) (*models.CashinResponse, error) {
	if amount.LessThan(minCashinAmount) {
		return nil, fmt.Errorf("%w: minimum cash-in is ₱%s", ErrInvalidAmount, minCashinAmount.StringFixed(0))
	}

	sess, err := s.sessions.Authenticate(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Gateway session negotiation failed")
		return nil, ErrGatewayUnavailable
	}

	result, err := s.gateway.CreateCashin(ctx, sess, amount,
		s.publicBaseURL+"/api/v1/nexuspay/webhook",
		s.publicBaseURL+"/wallet",
	)
	if err != nil {
		s.logger.Error().Err(err).Str("amount", amount.StringFixed(2)).Msg("Gateway cashin creation failed")
		return nil, ErrGatewayUnavailable
	}

	txn, err := s.ledger.CreateCashinTransaction(ctx, userID, amount, result.TransactionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("user_id", userID).
		Int("tx_id", txn.ID).
		Str("gateway_tx", result.TransactionID).
		Str("amount", amount.StringFixed(2)).
		Msg("Cash-in initiated")

	return &models.CashinResponse{
		Success:       true,
		PaymentURL:    result.PaymentURL,
		TransactionID: result.TransactionID,
		Amount:        amount.StringFixed(2),
	}, nil
}

// PollStatus serves the client-driven status check. When the gateway reports
// the payment done, this runs the same confirm-and-credit as the webhook
// would; webhook delivery is not guaranteed, so polling is the fallback
// channel, and the ledger claim keeps the two from double-crediting.
func (s *CashinService) PollStatus(ctx context.Context, gatewayTxID string) (*models.CashinStatusResponse, error) {
	txn, err := s.ledger.FindCashinByExternalID(ctx, gatewayTxID)
	if err != nil {
		return nil, err
	}

	if txn.Status == string(models.TransactionStatusCompleted) {
		return &models.CashinStatusResponse{
			Success:         true,
			ReferenceNumber: gatewayTxID,
			Amount:          txn.Amount.StringFixed(2),
			Status:          txn.Status,
			Message:         "Payment credited",
		}, nil
	}

	sess, err := s.sessions.Authenticate(ctx)
	if err != nil {
		return nil, ErrGatewayUnavailable
	}
	status, err := s.gateway.CashinStatus(ctx, sess, gatewayTxID)
	if err != nil {
		return nil, ErrGatewayUnavailable
	}

	result, err := s.ConfirmAndCredit(ctx, gatewayTxID, status.Status, status.Amount)
	if err != nil {
		return nil, err
	}

	resp := &models.CashinStatusResponse{
		Success:         true,
		ReferenceNumber: gatewayTxID,
		Amount:          txn.Amount.StringFixed(2),
	}
	switch result.Outcome {
	case ConfirmCredited, ConfirmAlreadyCompleted:
		resp.Status = string(models.TransactionStatusCompleted)
		resp.Message = "Payment credited"
	case ConfirmInProgress:
		resp.Status = string(models.TransactionStatusProcessing)
		resp.Message = "Payment is being processed"
	case ConfirmDeferred:
		resp.Status = string(models.TransactionStatusPending)
		resp.Message = "Payment received, credit pending"
	default:
		resp.Status = txn.Status
		resp.Message = "Awaiting payment"
	}
	return resp, nil
}

// ConfirmAndCredit is the single shared confirm-and-credit procedure. It is
// safe to invoke any number of times, concurrently, from any entry point:
// exactly one invocation per transaction performs the custodian transfer and
// the balance credit.
func (s *CashinService) ConfirmAndCredit(ctx context.Context, gatewayTxID, reportedStatus, reportedAmount string) (*ConfirmResult, error) {
	// Step 1: validate the gateway's report before touching anything.
	if !nexuspay.IsSuccessStatus(reportedStatus) {
		return &ConfirmResult{Outcome: ConfirmRejected, Message: "status not successful"}, nil
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(reportedAmount))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return &ConfirmResult{Outcome: ConfirmRejected, Message: "invalid amount"}, nil
	}

	// Step 2: correlate against the local ledger.
	txn, err := s.ledger.FindCashinByExternalID(ctx, gatewayTxID)
	if err == ErrTransactionNotFound {
		return &ConfirmResult{Outcome: ConfirmUnmatched, Message: "no matching transaction"}, nil
	}
	if err != nil {
		return nil, err
	}

	// Step 3: terminal and in-flight states are acknowledged, not touched.
	switch txn.Status {
	case string(models.TransactionStatusCompleted):
		return &ConfirmResult{Outcome: ConfirmAlreadyCompleted, Transaction: txn}, nil
	case string(models.TransactionStatusProcessing):
		return &ConfirmResult{Outcome: ConfirmInProgress, Transaction: txn}, nil
	}

	if !amount.Equal(txn.Amount) {
		s.logger.Warn().
			Int("tx_id", txn.ID).
			Str("local_amount", txn.Amount.StringFixed(2)).
			Str("reported_amount", amount.StringFixed(2)).
			Msg("Gateway reported amount differs from local record")
	}

	// Step 4: the atomic claim. Losing the conditional update means another
	// webhook/poll/admin invocation owns this transaction.
	if err := s.ledger.ClaimTransaction(ctx, txn.ID); err != nil {
		if err == ErrAlreadyClaimed {
			return &ConfirmResult{Outcome: ConfirmInProgress, Transaction: txn}, nil
		}
		return nil, err
	}

	// Step 5: resolve the receiving user and their custodian handle. Failure
	// here reverts the claim so a later attempt can resolve it.
	if txn.ReceiverID == nil {
		s.release(ctx, txn.ID, "cashin transaction has no receiver")
		return &ConfirmResult{Outcome: ConfirmDeferred, Message: "transaction has no receiver", Transaction: txn}, nil
	}
	userID := *txn.ReceiverID
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		s.release(ctx, txn.ID, fmt.Sprintf("receiver lookup failed: %v", err))
		return &ConfirmResult{Outcome: ConfirmDeferred, Message: "receiver not found", Transaction: txn}, nil
	}
	link, err := s.users.GetWalletLink(ctx, userID)
	if err != nil {
		s.release(ctx, txn.ID, fmt.Sprintf("wallet link unavailable: %v", err))
		return &ConfirmResult{Outcome: ConfirmDeferred, Message: "custodial wallet not linked", Transaction: txn}, nil
	}

	// Step 6: mirror the value at the custodian first. The custodian transfer
	// is the source of truth; the local balance is only ever a mirror of a
	// transfer that already succeeded.
	custodianTxID, err := s.transferWithRetry(ctx, link.PaygramUserID, txn.Amount, fmt.Sprintf("cashin-%d", txn.ID))
	if err != nil {
		if reason := err.Error(); strings.Contains(strings.ToLower(reason), "insufficient") {
			_ = s.users.InvalidateWalletLink(ctx, userID, reason)
		}
		s.release(ctx, txn.ID, fmt.Sprintf("custodian transfer failed: %v", err))
		return &ConfirmResult{Outcome: ConfirmDeferred, Message: "custodian transfer failed", Transaction: txn}, nil
	}

	if err := s.ledger.CompleteTransaction(ctx, txn.ID); err != nil {
		// The transfer went through but the completion update failed. Do not
		// release the claim: a re-claim would transfer again. Surface loudly.
		s.logger.Error().Err(err).Int("tx_id", txn.ID).Str("custodian_tx", custodianTxID).
			Msg("Custodian transfer succeeded but completion update failed; manual reconciliation required")
		return nil, err
	}

	note := fmt.Sprintf("QRPH credit for NexusPay ref:%s", gatewayTxID)
	if _, err := s.ledger.CreditFromCustodian(ctx, userID, txn.Amount, models.TransactionTypeQRPHCredit, note, custodianTxID); err != nil {
		s.logger.Error().Err(err).Int("tx_id", txn.ID).Str("custodian_tx", custodianTxID).
			Msg("Custodian transfer succeeded but ledger credit failed; manual reconciliation required")
		return nil, err
	}

	s.logger.Info().
		Int("tx_id", txn.ID).
		Int("user_id", userID).
		Str("gateway_tx", gatewayTxID).
		Str("custodian_tx", custodianTxID).
		Str("amount", txn.Amount.StringFixed(2)).
		Msg("Cash-in credited")

	return &ConfirmResult{Outcome: ConfirmCredited, Transaction: txn}, nil
}

// transferWithRetry attempts the custodian transfer up to 1+len(retryDelays)
// times. An "insufficient" failure is definitively non-retryable. The
// idempotency key is derived from the local transaction id so every attempt,
// including attempts from a later re-claim, refers to the same logical
// transfer.
func (s *CashinService) transferWithRetry(ctx context.Context, handle string, amount decimal.Decimal, idemKey string) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		custodianTxID, err := s.custodian.TransferToUser(ctx, handle, amount, idemKey)
		if err == nil {
			return custodianTxID, nil
		}
		lastErr = err

		if strings.Contains(strings.ToLower(err.Error()), "insufficient") {
			return "", err
		}
		if attempt >= len(s.retryDelays) {
			return "", lastErr
		}

		s.logger.Warn().Err(err).Int("attempt", attempt+1).Str("idem_key", idemKey).
			Msg("Custodian transfer failed, retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.retryDelays[attempt]):
		}
	}
}

func (s *CashinService) release(ctx context.Context, txID int, reason string) {
	s.logger.Warn().Int("tx_id", txID).Str("reason", reason).Msg("Reverting cash-in claim to pending")
	if err := s.ledger.ReleaseClaim(ctx, txID); err != nil {
		s.logger.Error().Err(err).Int("tx_id", txID).Msg("Failed to release cash-in claim")
	}
}
