package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the single source of truth for money movement. A nil SenderID
// means the money came from outside the platform (gateway cash-in), a nil
// ReceiverID means it left the platform (gateway payout).
type Transaction struct {
	ID           int             `json:"id"`
	SenderID     *int            `json:"sender_id,omitempty"`
	ReceiverID   *int            `json:"receiver_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	WalletType   string          `json:"wallet_type"`
	Note         string          `json:"note,omitempty"`
	ExternalTxID *string         `json:"external_tx_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type TransactionType string

const (
	TransactionTypeQRPHCashin       TransactionType = "qrph_cashin"
	TransactionTypeQRPHCredit       TransactionType = "qrph_credit"
	TransactionTypeQRPHPayout       TransactionType = "qrph_payout"
	TransactionTypeQRPHPayoutFailed TransactionType = "qrph_payout_failed"
	TransactionTypeTopup            TransactionType = "topup"
	TransactionTypeCryptoTopup      TransactionType = "crypto_topup"
	TransactionTypeTransfer         TransactionType = "transfer"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusRefunded   TransactionStatus = "refunded"
)

type WalletType string

const (
	WalletTypePHP  WalletType = "php"
	WalletTypePHPT WalletType = "phpt"
)

type CashinRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type CashinResponse struct {
	Success       bool   `json:"success"`
	PaymentURL    string `json:"payment_url,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Message       string `json:"message,omitempty"`
}

type CashinStatusResponse struct {
	Success         bool   `json:"success"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	Amount          string `json:"amount,omitempty"`
	Status          string `json:"status,omitempty"`
	Message         string `json:"message,omitempty"`
}

type CashoutRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
	Provider      string          `json:"provider"`
}

type CashoutResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Status        string `json:"status,omitempty"`
	Message       string `json:"message,omitempty"`
	Refunded      bool   `json:"refunded"`
}

// WebhookPayload tolerates the gateway's inconsistent field naming: depending
// on the event source the same value arrives as transactionId/transaction_id,
// status/transaction_status, amount/total_amount.
type WebhookPayload struct {
	TransactionID     string      `json:"transactionId"`
	TransactionIDSnake string     `json:"transaction_id"`
	Status            string      `json:"status"`
	TransactionStatus string      `json:"transaction_status"`
	Amount            json.Number `json:"amount"`
	TotalAmount       json.Number `json:"total_amount"`
}

// ReferenceID returns whichever transaction id variant was populated.
func (p *WebhookPayload) ReferenceID() string {
	if p.TransactionID != "" {
		return p.TransactionID
	}
	return p.TransactionIDSnake
}

func (p *WebhookPayload) ReportedStatus() string {
	if p.Status != "" {
		return p.Status
	}
	return p.TransactionStatus
}

func (p *WebhookPayload) ReportedAmount() string {
	if p.Amount.String() != "" {
		return p.Amount.String()
	}
	return p.TotalAmount.String()
}
