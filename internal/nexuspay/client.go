package nexuspay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// Client talks to the NexusPay QRPH API. All calls go through a circuit
// breaker; when the gateway has been failing, callers get an immediate error
// instead of a hanging request, and the service surfaces it as "gateway
// unavailable".
type Client struct {
	baseURL string
	creds   CredentialsSource
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

func NewClient(baseURL string, creds CredentialsSource, logger zerolog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:    "nexuspay",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: 20 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  logger,
	}
}

type CashinResult struct {
	TransactionID string
	PaymentURL    string
}

type StatusResult struct {
	Status string
	Amount string
}

// PayoutOutcome classifies the gateway's answer to a payout. Ambiguous is a
// first-class outcome: neither an explicit success nor an explicit error, and
// explicitly not resolved synchronously.
type PayoutOutcome int

const (
	PayoutOutcomeSuccess PayoutOutcome = iota
	PayoutOutcomeError
	PayoutOutcomeAmbiguous
)

type PayoutRequest struct {
	PayoutID      string
	AccountNumber string
	AccountName   string
	Provider      string
	Amount        decimal.Decimal
}

type cashinCreateResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
	Message       string `json:"message"`
}

type cashinStatusResponse struct {
	Success bool        `json:"success"`
	Status  string      `json:"status"`
	Amount  json.Number `json:"amount"`
	Message string      `json:"message"`
}

type payoutSubmitResponse struct {
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	PayoutLink string `json:"payoutlink"`
	Message    string `json:"message"`
}

type payoutLinkResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateCashin asks the gateway for a hosted QR payment page. webhookURL is
// where the gateway will confirm the payment; redirectURL is where the payer's
// browser lands afterwards.
func (c *Client) CreateCashin(ctx context.Context, sess *Session, amount decimal.Decimal, webhookURL, redirectURL string) (*CashinResult, error) {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{
		"merchant_id":  creds.MerchantID,
		"amount":       amount.StringFixed(2),
		"currency":     "PHP",
		"webhook_url":  webhookURL,
		"redirect_url": redirectURL,
	}

	body, err := c.post(ctx, sess, "/api/qrph/cashin", payload)
	if err != nil {
		return nil, err
	}

	var result cashinCreateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("cashin response not JSON: %w", err)
	}
	if !result.Success || result.TransactionID == "" || result.PaymentURL == "" {
		return nil, fmt.Errorf("gateway rejected cashin: %s", result.Message)
	}

	return &CashinResult{
		TransactionID: result.TransactionID,
		PaymentURL:    result.PaymentURL,
	}, nil
}

// CashinStatus fetches the gateway's view of a cash-in transaction.
func (c *Client) CashinStatus(ctx context.Context, sess *Session, gatewayTxID string) (*StatusResult, error) {
	body, err := c.get(ctx, sess, "/api/qrph/cashin/"+gatewayTxID)
	if err != nil {
		return nil, err
	}

	var result cashinStatusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("status response not JSON: %w", err)
	}
	if !result.Success && result.Status == "" {
		return nil, fmt.Errorf("gateway rejected status query: %s", result.Message)
	}

	return &StatusResult{Status: result.Status, Amount: result.Amount.String()}, nil
}

// SubmitPayout posts the encrypted payout payload and returns the payout link
// that must be separately executed. Every numeric field in the payload is
// serialized as a string; the gateway silently rejects numeric JSON values.
func (c *Client) SubmitPayout(ctx context.Context, sess *Session, req PayoutRequest) (string, error) {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return "", err
	}

	payloadCipher, err := NewPayloadCipher(creds.SecretKey, creds.MerchantID)
	if err != nil {
		return "", err
	}

	plain, err := json.Marshal(map[string]string{
		"payout_id":      req.PayoutID,
		"account_number": req.AccountNumber,
		"account_name":   req.AccountName,
		"provider_code":  ProviderCode(req.Provider),
		"amount":         req.Amount.StringFixed(2),
	})
	if err != nil {
		return "", err
	}

	encrypted, err := payloadCipher.Encrypt(plain)
	if err != nil {
		return "", err
	}

	body, err := c.post(ctx, sess, "/api/qrph/payout", map[string]string{
		"merchant_id": creds.MerchantID,
		"data":        encrypted,
	})
	if err != nil {
		return "", err
	}

	var result payoutSubmitResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("payout response not JSON: %w", err)
	}
	if !result.Success || result.PayoutLink == "" {
		return "", fmt.Errorf("gateway rejected payout: %s", result.Message)
	}

	return result.PayoutLink, nil
}

// ExecutePayoutLink performs the second step of the payout: fetching the link
// actually moves the money. Only an explicit status=success is a success; an
// explicit error is an error; anything else is ambiguous and left for
// reconciliation.
func (c *Client) ExecutePayoutLink(ctx context.Context, sess *Session, link string) (PayoutOutcome, string, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return nil, err
		}
		c.decorate(req, sess)
		return c.do(req)
	})
	if err != nil {
		return PayoutOutcomeError, "", fmt.Errorf("payout link request failed: %w", err)
	}

	var result payoutLinkResponse
	if err := json.Unmarshal(body, &result); err != nil {
		// Non-JSON is neither an explicit success nor an explicit error.
		return PayoutOutcomeAmbiguous, "", nil
	}

	switch strings.ToLower(result.Status) {
	case "success":
		return PayoutOutcomeSuccess, result.Message, nil
	case "error", "failed":
		return PayoutOutcomeError, result.Message, nil
	default:
		return PayoutOutcomeAmbiguous, result.Message, nil
	}
}

func (c *Client) post(ctx context.Context, sess *Session, path string, payload any) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.decorate(req, sess)
		return c.do(req)
	})
}

func (c *Client) get(ctx context.Context, sess *Session, path string) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		c.decorate(req, sess)
		return c.do(req)
	})
}

func (c *Client) decorate(req *http.Request, sess *Session) {
	if sess == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+sess.BearerToken)
	req.Header.Set("Cookie", sess.Cookie)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return body, nil
}
