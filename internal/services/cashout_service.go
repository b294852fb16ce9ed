package services

import (
	"context"
	"fmt"

	"payverse/internal/models"
	"payverse/internal/nexuspay"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CashoutService converts PHPT back to PHP delivered to an e-wallet. The flow
// is: custodian balance pre-check, debit into the escrow wallet, encrypted
// payout submit, payout-link execution. Everything after the escrow debit has
// a compensating refund path; the distinction between "refunded" and "failed"
// (refund itself failed, human needed) is load-bearing and must survive into
// the transaction record.
type CashoutService struct {
	ledger    *LedgerService
	users     *UserService
	custodian CustodianClient
	sessions  GatewaySessions
	gateway   GatewayClient
	logger    zerolog.Logger

	escrowHandle string
}

func NewCashoutService(ledger *LedgerService, users *UserService, custodian CustodianClient, sessions GatewaySessions, gateway GatewayClient, escrowHandle string, logger zerolog.Logger) *CashoutService {
	return &CashoutService{
		ledger:       ledger,
		users:        users,
		custodian:    custodian,
		sessions:     sessions,
		gateway:      gateway,
		logger:       logger,
		escrowHandle: escrowHandle,
	}
}

func (s *CashoutService) Initiate(ctx context.Context, userID int, req *models.CashoutRequest) (*models.CashoutResponse, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if req.AccountNumber == "" || req.AccountName == "" {
		return nil, fmt.Errorf("%w: destination account is required", ErrInvalidAmount)
	}

	link, err := s.users.GetWalletLink(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Fail fast before touching any wallet.
	custodianBalance, err := s.custodian.GetBalance(ctx, link.PaygramUserID)
	if err != nil {
		return nil, fmt.Errorf("custodian balance check failed: %w", err)
	}
	if custodianBalance.LessThan(req.Amount) {
		return nil, ErrInsufficientBalance
	}

	payoutID := uuid.New().String()

	// Escrow debit. A failure here has no side effects to compensate.
	escrowTxID, err := s.custodian.Transfer(ctx, link.PaygramUserID, s.escrowHandle, req.Amount, "escrow-"+payoutID)
	if err != nil {
		s.logger.Warn().Err(err).Int("user_id", userID).Str("payout_id", payoutID).Msg("Escrow debit failed")
		return nil, fmt.Errorf("escrow debit failed: %w", err)
	}

	s.logger.Info().
		Int("user_id", userID).
		Str("payout_id", payoutID).
		Str("escrow_tx", escrowTxID).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("Escrowed funds for cash-out")

	// From here on, every failure must give the money back.
	sess, err := s.sessions.Authenticate(ctx)
	if err != nil {
		return s.compensate(ctx, userID, link.PaygramUserID, payoutID, req.Amount, "gateway session negotiation failed")
	}

	payoutLink, err := s.gateway.SubmitPayout(ctx, sess, nexuspay.PayoutRequest{
		PayoutID:      payoutID,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		Provider:      req.Provider,
		Amount:        req.Amount,
	})
	if err != nil {
		return s.compensate(ctx, userID, link.PaygramUserID, payoutID, req.Amount, fmt.Sprintf("payout submit failed: %v", err))
	}

	outcome, message, err := s.gateway.ExecutePayoutLink(ctx, sess, payoutLink)
	if err != nil {
		outcome = nexuspay.PayoutOutcomeError
		message = err.Error()
	}

	switch outcome {
	case nexuspay.PayoutOutcomeSuccess:
		note := fmt.Sprintf("QRPH payout %s to %s (%s)", payoutID, req.AccountNumber, req.Provider)
		if _, err := s.ledger.CreatePayoutTransaction(ctx, userID, req.Amount,
			models.TransactionTypeQRPHPayout, models.TransactionStatusCompleted, note, payoutID); err != nil {
			s.logger.Error().Err(err).Str("payout_id", payoutID).Msg("Payout succeeded but recording failed")
		}
		s.logger.Info().Int("user_id", userID).Str("payout_id", payoutID).Str("amount", req.Amount.StringFixed(2)).Msg("Cash-out completed")
		return &models.CashoutResponse{
			Success:       true,
			TransactionID: payoutID,
			Amount:        req.Amount.StringFixed(2),
			Status:        string(models.TransactionStatusCompleted),
			Message:       "Payout delivered",
		}, nil

	case nexuspay.PayoutOutcomeAmbiguous:
		// Neither success nor failure: do not compensate, record as pending
		// and leave it for reconciliation. Ambiguous is not failed.
		note := fmt.Sprintf("QRPH payout %s to %s (%s) awaiting gateway confirmation", payoutID, req.AccountNumber, req.Provider)
		if _, err := s.ledger.CreatePayoutTransaction(ctx, userID, req.Amount,
			models.TransactionTypeQRPHPayout, models.TransactionStatusPending, note, payoutID); err != nil {
			s.logger.Error().Err(err).Str("payout_id", payoutID).Msg("Failed to record ambiguous payout")
		}
		s.logger.Warn().Int("user_id", userID).Str("payout_id", payoutID).Str("gateway_message", message).Msg("Payout outcome ambiguous, left pending")
		return &models.CashoutResponse{
			Success:       true,
			TransactionID: payoutID,
			Amount:        req.Amount.StringFixed(2),
			Status:        string(models.TransactionStatusPending),
			Message:       "Payout is processing",
		}, nil

	default:
		return s.compensate(ctx, userID, link.PaygramUserID, payoutID, req.Amount, fmt.Sprintf("payout link execution failed: %s", message))
	}
}

// compensate moves the escrowed amount back to the user's custodian wallet
// and records the failed payout. If the refund itself fails the row is marked
// failed instead of refunded; that difference is what tells an operator a
// human has to step in.
func (s *CashoutService) compensate(ctx context.Context, userID int, userHandle, payoutID string, amount decimal.Decimal, reason string) (*models.CashoutResponse, error) {
	s.logger.Warn().
		Int("user_id", userID).
		Str("payout_id", payoutID).
		Str("reason", reason).
		Msg("Cash-out failed after escrow, refunding")

	_, refundErr := s.custodian.Transfer(ctx, s.escrowHandle, userHandle, amount, "refund-"+payoutID)

	status := models.TransactionStatusRefunded
	note := fmt.Sprintf("QRPH payout %s failed: %s (escrow refunded)", payoutID, reason)
	if refundErr != nil {
		status = models.TransactionStatusFailed
		note = fmt.Sprintf("QRPH payout %s failed: %s (REFUND FAILED: %v)", payoutID, reason, refundErr)
		s.logger.Error().
			Err(refundErr).
			Int("user_id", userID).
			Str("payout_id", payoutID).
			Str("amount", amount.StringFixed(2)).
			Msg("Compensating refund failed; manual intervention required")
	}

	if _, err := s.ledger.CreatePayoutTransaction(ctx, userID, amount,
		models.TransactionTypeQRPHPayoutFailed, status, note, payoutID); err != nil {
		s.logger.Error().Err(err).Str("payout_id", payoutID).Msg("Failed to record failed payout")
	}

	if refundErr != nil {
		return &models.CashoutResponse{
			Success:       false,
			TransactionID: payoutID,
			Amount:        amount.StringFixed(2),
			Status:        string(models.TransactionStatusFailed),
			Message:       "Payout failed and the refund is pending — contact support",
			Refunded:      false,
		}, ErrRefundFailed
	}

	return &models.CashoutResponse{
		Success:       false,
		TransactionID: payoutID,
		Amount:        amount.StringFixed(2),
		Status:        string(models.TransactionStatusRefunded),
		Message:       "Payout failed; the amount was refunded to your wallet",
		Refunded:      true,
	}, nil
}
