package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"payverse/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AdminService covers the remediation channels: re-processing a stuck QRPH
// cash-in, sweeping all pending ones, and the direct-credit escape hatch that
// bypasses the custodian entirely. Every action writes an audit row as part
// of the operation itself.
type AdminService struct {
	db       *sql.DB
	ledger   *LedgerService
	cashin   *CashinService
	sessions GatewaySessions
	gateway  GatewayClient
	logger   zerolog.Logger

	// pacer throttles the process-all sweep so a large backlog does not
	// hammer the gateway.
	pacer *rate.Limiter
}

func NewAdminService(db *sql.DB, ledger *LedgerService, cashin *CashinService, sessions GatewaySessions, gateway GatewayClient, logger zerolog.Logger) *AdminService {
	return &AdminService{
		db:       db,
		ledger:   ledger,
		cashin:   cashin,
		sessions: sessions,
		gateway:  gateway,
		logger:   logger,
		pacer:    rate.NewLimiter(rate.Limit(2), 1),
	}
}

// ProcessCashin re-drives a single cash-in through the shared
// confirm-and-credit routine using a fresh gateway status query. It is the
// admin counterpart of the client status poll and is just as safe to repeat.
func (s *AdminService) ProcessCashin(ctx context.Context, actorID, txID int) (*ConfirmResult, error) {
	txn, err := s.ledger.GetTransactionByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if txn.Type != string(models.TransactionTypeQRPHCashin) || txn.ExternalTxID == nil {
		return nil, fmt.Errorf("transaction %d is not a QRPH cash-in", txID)
	}
	if txn.Status == string(models.TransactionStatusCompleted) {
		return &ConfirmResult{Outcome: ConfirmAlreadyCompleted, Transaction: txn}, nil
	}

	result, err := s.confirmViaGateway(ctx, *txn.ExternalTxID)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, &models.AuditLog{
		ActorID:     actorID,
		Action:      "qrph_process",
		TargetType:  "transaction",
		TargetID:    strconv.Itoa(txID),
		BeforeValue: txn.Status,
		AfterValue:  string(result.Outcome),
		RiskLevel:   models.RiskLevelMedium,
	})
	return result, nil
}

// ProcessAllResult tallies a pending sweep per outcome.
type ProcessAllResult struct {
	Processed int            `json:"processed"`
	Outcomes  map[string]int `json:"outcomes"`
}

// ProcessAllPending sweeps every pending QRPH cash-in through a gateway
// status query and the confirm-and-credit routine, paced so the sweep does
// not flood the gateway. Failures on individual transactions are counted and
// the sweep continues.
func (s *AdminService) ProcessAllPending(ctx context.Context, actorID int) (*ProcessAllResult, error) {
	pending, err := s.ledger.ListPendingCashins(ctx, 100)
	if err != nil {
		return nil, err
	}

	out := &ProcessAllResult{Outcomes: make(map[string]int)}
	for _, txn := range pending {
		if txn.ExternalTxID == nil {
			out.Outcomes["skipped"]++
			continue
		}
		if err := s.pacer.Wait(ctx); err != nil {
			return out, err
		}
		result, err := s.confirmViaGateway(ctx, *txn.ExternalTxID)
		if err != nil {
			s.logger.Warn().Err(err).Int("tx_id", txn.ID).Msg("Pending sweep: gateway query failed")
			out.Outcomes["error"]++
			continue
		}
		out.Processed++
		out.Outcomes[string(result.Outcome)]++
	}

	s.recordAudit(ctx, &models.AuditLog{
		ActorID:    actorID,
		Action:     "qrph_process_all",
		TargetType: "transaction",
		TargetID:   "pending",
		AfterValue: fmt.Sprintf("processed=%d", out.Processed),
		RiskLevel:  models.RiskLevelMedium,
	})
	return out, nil
}

// DirectCredit completes a pending cash-in and credits the local balance
// without the custodian transfer. It exists for payments the gateway
// confirmed out-of-band; the money never reaches the custodial wallet, so
// the caller is asserting it was settled some other way. That makes it the
// highest-risk action here.
func (s *AdminService) DirectCredit(ctx context.Context, actorID, txID int, reason string) (*models.Transaction, error) {
	txn, err := s.ledger.GetTransactionByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if txn.Type != string(models.TransactionTypeQRPHCashin) {
		return nil, fmt.Errorf("transaction %d is not a QRPH cash-in", txID)
	}
	if txn.ReceiverID == nil {
		return nil, fmt.Errorf("transaction %d has no receiver", txID)
	}

	// Same claim gate as the automatic paths, so a racing webhook cannot
	// credit the same transaction twice.
	if err := s.ledger.ClaimTransaction(ctx, txID); err != nil {
		return nil, err
	}

	if err := s.ledger.CompleteTransaction(ctx, txID); err != nil {
		return nil, err
	}
	note := fmt.Sprintf("admin direct credit for tx %d: %s", txID, reason)
	if _, err := s.ledger.CreditFromCustodian(ctx, *txn.ReceiverID, txn.Amount,
		models.TransactionTypeTopup, note, fmt.Sprintf("admin-%d-%d", actorID, txID)); err != nil {
		s.logger.Error().Err(err).Int("tx_id", txID).Msg("Direct credit: transaction completed but balance credit failed")
		return nil, err
	}

	s.recordAudit(ctx, &models.AuditLog{
		ActorID:     actorID,
		Action:      "qrph_direct_credit",
		TargetType:  "transaction",
		TargetID:    strconv.Itoa(txID),
		BeforeValue: txn.Status,
		AfterValue:  fmt.Sprintf("completed amount=%s reason=%s", txn.Amount.StringFixed(2), reason),
		RiskLevel:   models.RiskLevelCritical,
	})

	s.logger.Warn().
		Int("actor_id", actorID).
		Int("tx_id", txID).
		Str("amount", txn.Amount.StringFixed(2)).
		Str("reason", reason).
		Msg("Direct credit applied, custodian bypassed")

	return s.ledger.GetTransactionByID(ctx, txID)
}

// ListAuditLogs returns audit rows newest first.
func (s *AdminService) ListAuditLogs(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, action, target_type, target_id,
		        COALESCE(before_value, ''), COALESCE(after_value, ''), risk_level, created_at
		 FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		entry := &models.AuditLog{}
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.TargetType,
			&entry.TargetID, &entry.BeforeValue, &entry.AfterValue, &entry.RiskLevel, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *AdminService) confirmViaGateway(ctx context.Context, gatewayTxID string) (*ConfirmResult, error) {
	sess, err := s.sessions.Authenticate(ctx)
	if err != nil {
		return nil, ErrGatewayUnavailable
	}
	status, err := s.gateway.CashinStatus(ctx, sess, gatewayTxID)
	if err != nil {
		return nil, ErrGatewayUnavailable
	}
	return s.cashin.ConfirmAndCredit(ctx, gatewayTxID, status.Status, status.Amount)
}

// recordAudit must not fail the admin operation it documents, but a write
// failure is loud in the logs.
func (s *AdminService) recordAudit(ctx context.Context, entry *models.AuditLog) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor_id, action, target_type, target_id, before_value, after_value, risk_level)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ActorID, entry.Action, entry.TargetType, entry.TargetID,
		entry.BeforeValue, entry.AfterValue, entry.RiskLevel)
	if err != nil {
		s.logger.Error().Err(err).Str("action", entry.Action).Msg("Failed to write audit log")
	}
}
