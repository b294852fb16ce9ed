package services

import (
	"context"
	"database/sql"
	"fmt"

	"payverse/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerService owns the users' balance columns and the transactions table.
// It is the only code path allowed to mutate a PHPT balance as a side effect
// of a cross-system transfer: every mutation updates the balance AND writes
// the transaction row inside one database transaction. There are deliberately
// no separate "update balance" / "record transaction" methods.
type LedgerService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewLedgerService(db *sql.DB, logger zerolog.Logger) *LedgerService {
	return &LedgerService{db: db, logger: logger}
}

// CreditFromCustodian atomically increases the user's PHPT balance and inserts
// the audit transaction row referencing the custodian transfer. Returns the
// new total balance. A crash can lose the whole unit of work but can never
// credit a balance without its audit row.
func (s *LedgerService) CreditFromCustodian(ctx context.Context, userID int, amount decimal.Decimal, txType models.TransactionType, note, custodianTxID string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	return s.applyBalanceChange(ctx, userID, amount, txType, note, custodianTxID)
}

// DebitToCustodian is the symmetric debit. Insufficiency is checked under the
// same row lock as the mutation; there is no separate pre-check to race with.
func (s *LedgerService) DebitToCustodian(ctx context.Context, userID int, amount decimal.Decimal, txType models.TransactionType, note, custodianTxID string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	return s.applyBalanceChange(ctx, userID, amount.Neg(), txType, note, custodianTxID)
}

func (s *LedgerService) applyBalanceChange(ctx context.Context, userID int, delta decimal.Decimal, txType models.TransactionType, note, custodianTxID string) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var phpt, fiat decimal.Decimal
	err = tx.QueryRowContext(ctx,
		"SELECT phpt_balance, fiat_balance FROM users WHERE id = ? FOR UPDATE",
		userID,
	).Scan(&phpt, &fiat)
	if err == sql.ErrNoRows {
		return decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock user row: %w", err)
	}

	newPhpt := phpt.Add(delta)
	if newPhpt.IsNegative() {
		return decimal.Zero, ErrInsufficientBalance
	}
	newTotal := newPhpt.Add(fiat)

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET phpt_balance = ?, balance = ? WHERE id = ?",
		newPhpt, newTotal, userID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}

	var senderID, receiverID any
	if delta.IsPositive() {
		receiverID = userID
	} else {
		senderID = userID
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO transactions (sender_id, receiver_id, amount, type, status, wallet_type, note, external_tx_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		senderID, receiverID, delta.Abs(), string(txType), string(models.TransactionStatusCompleted),
		string(models.WalletTypePHPT), note, nullableString(custodianTxID),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit balance change: %w", err)
	}

	s.logger.Info().
		Int("user_id", userID).
		Str("delta", delta.StringFixed(2)).
		Str("type", string(txType)).
		Str("custodian_tx", custodianTxID).
		Msg("Ledger balance updated")

	return newTotal, nil
}

// CreateCashinTransaction records a freshly initiated QR deposit as pending.
// The gateway transaction id goes in external_tx_id and, for compatibility
// with older tooling that greps the note, in the note text as well.
func (s *LedgerService) CreateCashinTransaction(ctx context.Context, userID int, amount decimal.Decimal, gatewayTxID string) (*models.Transaction, error) {
	note := fmt.Sprintf("QRPH cash-in via NexusPay ref:%s", gatewayTxID)

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO transactions (sender_id, receiver_id, amount, type, status, wallet_type, note, external_tx_id) VALUES (NULL, ?, ?, ?, ?, ?, ?, ?)",
		userID, amount, string(models.TransactionTypeQRPHCashin), string(models.TransactionStatusPending),
		string(models.WalletTypePHP), note, gatewayTxID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cashin transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction ID: %w", err)
	}

	return s.GetTransactionByID(ctx, int(id))
}

// CreatePayoutTransaction records a cash-out outcome. Payout rows are written
// with their final (or pending-ambiguous) status in one shot; they are not
// claimed the way cash-ins are.
func (s *LedgerService) CreatePayoutTransaction(ctx context.Context, userID int, amount decimal.Decimal, txType models.TransactionType, status models.TransactionStatus, note, externalTxID string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO transactions (sender_id, receiver_id, amount, type, status, wallet_type, note, external_tx_id) VALUES (?, NULL, ?, ?, ?, ?, ?, ?)",
		userID, amount, string(txType), string(status), string(models.WalletTypePHP), note, nullableString(externalTxID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create payout transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction ID: %w", err)
	}
	return int(id), nil
}

// ClaimTransaction is the idempotency gate. A single conditional update moves
// the row pending -> processing; whoever gets rows-affected 1 owns the credit,
// everyone else gets ErrAlreadyClaimed. Implemented as one UPDATE, never as a
// read-then-write pair.
func (s *LedgerService) ClaimTransaction(ctx context.Context, txID int) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET status = ? WHERE id = ? AND status = ?",
		string(models.TransactionStatusProcessing), txID, string(models.TransactionStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to claim transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read claim result: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// ReleaseClaim reverts processing -> pending so a later webhook, poll or admin
// action can retry the whole confirm-and-credit procedure.
func (s *LedgerService) ReleaseClaim(ctx context.Context, txID int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET status = ? WHERE id = ? AND status = ?",
		string(models.TransactionStatusPending), txID, string(models.TransactionStatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

// CompleteTransaction finishes a claimed cash-in. The status guard means a
// completed row can never transition again.
func (s *LedgerService) CompleteTransaction(ctx context.Context, txID int) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET status = ? WHERE id = ? AND status = ?",
		string(models.TransactionStatusCompleted), txID, string(models.TransactionStatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read completion result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d was not in processing state", txID)
	}
	return nil
}

// FindCashinByExternalID correlates a gateway transaction id against local
// cash-in rows: the indexed external_tx_id column first, then a substring
// match on the note for rows written before the column existed.
func (s *LedgerService) FindCashinByExternalID(ctx context.Context, gatewayTxID string) (*models.Transaction, error) {
	txn, err := s.scanTransaction(s.db.QueryRowContext(ctx,
		selectTransaction+" WHERE type = ? AND external_tx_id = ? ORDER BY id DESC LIMIT 1",
		string(models.TransactionTypeQRPHCashin), gatewayTxID,
	))
	if err == nil {
		return txn, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}

	// Legacy fallback: the gateway id used to live only in the note text.
	txn, err = s.scanTransaction(s.db.QueryRowContext(ctx,
		selectTransaction+" WHERE type = ? AND note LIKE ? ORDER BY id DESC LIMIT 1",
		string(models.TransactionTypeQRPHCashin), "%"+gatewayTxID+"%",
	))
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

func (s *LedgerService) GetTransactionByID(ctx context.Context, txID int) (*models.Transaction, error) {
	txn, err := s.scanTransaction(s.db.QueryRowContext(ctx,
		selectTransaction+" WHERE id = ?", txID,
	))
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

// ListPendingCashins returns pending QR deposits oldest first, for batch
// remediation.
func (s *LedgerService) ListPendingCashins(ctx context.Context, limit int) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+" WHERE type = ? AND status = ? ORDER BY created_at ASC LIMIT ?",
		string(models.TransactionTypeQRPHCashin), string(models.TransactionStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending cashins: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanTransactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (s *LedgerService) GetUserTransactions(ctx context.Context, userID, limit, offset int) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+" WHERE sender_id = ? OR receiver_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?",
		userID, userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanTransactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// GetBalances returns the user's balance columns as stored.
func (s *LedgerService) GetBalances(ctx context.Context, userID int) (balance, fiat, phpt decimal.Decimal, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT balance, fiat_balance, phpt_balance FROM users WHERE id = ?", userID,
	).Scan(&balance, &fiat, &phpt)
	if err == sql.ErrNoRows {
		err = ErrUserNotFound
		return
	}
	if err != nil {
		err = fmt.Errorf("failed to fetch balances: %w", err)
	}
	return
}

const selectTransaction = "SELECT id, sender_id, receiver_id, amount, type, status, wallet_type, note, external_tx_id, created_at, updated_at FROM transactions"

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *LedgerService) scanTransaction(row rowScanner) (*models.Transaction, error) {
	return scanTransactionRow(row)
}

func scanTransactionRow(row rowScanner) (*models.Transaction, error) {
	var txn models.Transaction
	var senderID, receiverID sql.NullInt64
	var note, externalTxID sql.NullString

	err := row.Scan(
		&txn.ID, &senderID, &receiverID, &txn.Amount, &txn.Type, &txn.Status,
		&txn.WalletType, &note, &externalTxID, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if senderID.Valid {
		val := int(senderID.Int64)
		txn.SenderID = &val
	}
	if receiverID.Valid {
		val := int(receiverID.Int64)
		txn.ReceiverID = &val
	}
	txn.Note = note.String
	if externalTxID.Valid {
		txn.ExternalTxID = &externalTxID.String
	}

	return &txn, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
