package paygram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Client is a thin wrapper around the PayGram custodial wallet API. It carries
// no retry logic of its own; callers decide whether a failed transfer is worth
// retrying. Every transfer carries an idempotency key so a retried request
// after a timeout cannot double-move funds on the custodian side.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	logger   zerolog.Logger
}

func NewClient(baseURL, apiToken string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

type balanceResponse struct {
	Success bool   `json:"success"`
	Balance string `json:"balance"`
	Message string `json:"message"`
}

type transferRequest struct {
	FromUserID string `json:"from_user_id,omitempty"`
	ToUserID   string `json:"to_user_id,omitempty"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

type transferResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

// GetBalance returns the PHPT balance PayGram holds for the given handle.
func (c *Client) GetBalance(ctx context.Context, userHandle string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/balance/"+userHandle, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("paygram balance request failed: %w", err)
	}
	defer resp.Body.Close()

	var body balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("paygram balance response not JSON: %w", err)
	}
	if !body.Success {
		return decimal.Zero, fmt.Errorf("paygram balance query rejected: %s", body.Message)
	}

	balance, err := decimal.NewFromString(body.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("paygram returned unparseable balance %q: %w", body.Balance, err)
	}
	return balance, nil
}

// TransferToUser moves PHPT from the platform wallet to the user's custodian
// wallet. Returns the custodian's transaction id. idemKey must stay the same
// across retries of the same logical transfer.
func (c *Client) TransferToUser(ctx context.Context, userHandle string, amount decimal.Decimal, idemKey string) (string, error) {
	return c.transfer(ctx, transferRequest{
		ToUserID: userHandle,
		Amount:   amount.StringFixed(2),
		Currency: "PHPT",
	}, idemKey)
}

// TransferFromUser moves PHPT from the user's custodian wallet back to the
// platform wallet.
func (c *Client) TransferFromUser(ctx context.Context, userHandle string, amount decimal.Decimal, idemKey string) (string, error) {
	return c.transfer(ctx, transferRequest{
		FromUserID: userHandle,
		Amount:     amount.StringFixed(2),
		Currency:   "PHPT",
	}, idemKey)
}

// Transfer moves PHPT between two arbitrary custodian handles. Used by the
// cash-out flow to place funds in the escrow wallet and to refund them.
func (c *Client) Transfer(ctx context.Context, fromHandle, toHandle string, amount decimal.Decimal, idemKey string) (string, error) {
	return c.transfer(ctx, transferRequest{
		FromUserID: fromHandle,
		ToUserID:   toHandle,
		Amount:     amount.StringFixed(2),
		Currency:   "PHPT",
	}, idemKey)
}

func (c *Client) transfer(ctx context.Context, payload transferRequest, idemKey string) (string, error) {
	if idemKey == "" {
		idemKey = uuid.New().String()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transfer", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", idemKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paygram transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	var result transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("paygram transfer response not JSON: %w", err)
	}
	if !result.Success {
		c.logger.Warn().
			Str("from", payload.FromUserID).
			Str("to", payload.ToUserID).
			Str("amount", payload.Amount).
			Str("message", result.Message).
			Msg("PayGram transfer rejected")
		return "", fmt.Errorf("paygram transfer rejected: %s", result.Message)
	}

	return result.TransactionID, nil
}
