package models

import "time"

// MerchantSettings holds the NexusPay merchant credentials. Stored in the
// database so admins can rotate them without a redeploy; read through the
// settings cache.
type MerchantSettings struct {
	ID         int       `json:"id"`
	MerchantID string    `json:"merchant_id"`
	SecretKey  string    `json:"-"`
	Username   string    `json:"username"`
	Password   string    `json:"-"`
	UpdatedAt  time.Time `json:"updated_at"`
}
