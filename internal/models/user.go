package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User.Balance is always PhptBalance + FiatBalance; every write path that
// touches one of the components recomputes the total in the same statement.
type User struct {
	ID           int             `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         string          `json:"role"`
	Balance      decimal.Decimal `json:"balance"`
	FiatBalance  decimal.Decimal `json:"fiat_balance"`
	PhptBalance  decimal.Decimal `json:"phpt_balance"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleAdmin      UserRole = "admin"
	RoleSupport    UserRole = "support"
	RoleUser       UserRole = "user"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token,omitempty"`
}

type BalanceResponse struct {
	UserID      int    `json:"user_id"`
	Balance     string `json:"balance"`
	FiatBalance string `json:"fiat_balance"`
	PhptBalance string `json:"phpt_balance"`
}
