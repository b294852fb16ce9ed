package models

import "time"

// WalletLink associates a local user with their PayGram account handle.
// A failed custodian transfer invalidates the link instead of deleting it so
// the failure reason stays visible to the user.
type WalletLink struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	PaygramUserID string    `json:"paygram_user_id"`
	Valid         bool      `json:"valid"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
