package services

import (
	"context"
	"database/sql"
	"fmt"

	"payverse/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewUserService(db *sql.DB, logger zerolog.Logger) *UserService {
	return &UserService{db: db, logger: logger}
}

const selectUser = "SELECT id, username, email, password_hash, role, balance, fiat_balance, phpt_balance, is_active, created_at, updated_at FROM users"

func (s *UserService) GetUserByID(ctx context.Context, userID int) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, selectUser+" WHERE id = ?", userID))
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, selectUser+" WHERE email = ?", email))
}

// GetWalletLink returns the user's custodian handle. Only valid links are
// usable for transfers; an invalidated link surfaces ErrWalletNotLinked.
func (s *UserService) GetWalletLink(ctx context.Context, userID int) (*models.WalletLink, error) {
	var link models.WalletLink
	var lastError sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, paygram_user_id, valid, last_error, created_at, updated_at FROM wallet_links WHERE user_id = ?",
		userID,
	).Scan(&link.ID, &link.UserID, &link.PaygramUserID, &link.Valid, &lastError, &link.CreatedAt, &link.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet link: %w", err)
	}
	link.LastError = lastError.String
	if !link.Valid {
		return &link, ErrWalletNotLinked
	}
	return &link, nil
}

// LinkWallet records the association on first successful custodian contact,
// or re-validates a previously invalidated link.
func (s *UserService) LinkWallet(ctx context.Context, userID int, paygramUserID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wallet_links (user_id, paygram_user_id, valid, last_error)
		 VALUES (?, ?, 1, NULL)
		 ON DUPLICATE KEY UPDATE paygram_user_id = VALUES(paygram_user_id), valid = 1, last_error = NULL`,
		userID, paygramUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to link wallet: %w", err)
	}
	return nil
}

// InvalidateWalletLink flags the link after a transfer failure. The row is
// kept so the failure reason stays visible to the user.
func (s *UserService) InvalidateWalletLink(ctx context.Context, userID int, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE wallet_links SET valid = 0, last_error = ? WHERE user_id = ?",
		reason, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to invalidate wallet link: %w", err)
	}
	s.logger.Warn().Int("user_id", userID).Str("reason", reason).Msg("Wallet link invalidated")
	return nil
}

func (s *UserService) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role,
		&user.Balance, &user.FiatBalance, &user.PhptBalance, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}
