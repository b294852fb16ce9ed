package services

import (
	"context"
	"errors"
	"time"

	"payverse/internal/nexuspay"

	"github.com/shopspring/decimal"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

var transactionCols = []string{"id", "sender_id", "receiver_id", "amount", "type", "status", "wallet_type", "note", "external_tx_id", "created_at", "updated_at"}

var userCols = []string{"id", "username", "email", "password_hash", "role", "balance", "fiat_balance", "phpt_balance", "is_active", "created_at", "updated_at"}

var walletLinkCols = []string{"id", "user_id", "paygram_user_id", "valid", "last_error", "created_at", "updated_at"}

// fakeCustodian scripts TransferToUser/Transfer outcomes per call and records
// every invocation.
type fakeCustodian struct {
	balance    decimal.Decimal
	balanceErr error

	// transferErrs[i] is returned by call i; calls past the end succeed.
	transferErrs []error
	transferIDs  []string
	calls        []custodianCall
}

type custodianCall struct {
	From    string
	To      string
	Amount  decimal.Decimal
	IdemKey string
}

func (f *fakeCustodian) GetBalance(ctx context.Context, handle string) (decimal.Decimal, error) {
	return f.balance, f.balanceErr
}

func (f *fakeCustodian) TransferToUser(ctx context.Context, handle string, amount decimal.Decimal, idemKey string) (string, error) {
	return f.record(custodianCall{To: handle, Amount: amount, IdemKey: idemKey})
}

func (f *fakeCustodian) TransferFromUser(ctx context.Context, handle string, amount decimal.Decimal, idemKey string) (string, error) {
	return f.record(custodianCall{From: handle, Amount: amount, IdemKey: idemKey})
}

func (f *fakeCustodian) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, idemKey string) (string, error) {
	return f.record(custodianCall{From: from, To: to, Amount: amount, IdemKey: idemKey})
}

func (f *fakeCustodian) record(call custodianCall) (string, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, call)
	if idx < len(f.transferErrs) && f.transferErrs[idx] != nil {
		return "", f.transferErrs[idx]
	}
	if idx < len(f.transferIDs) {
		return f.transferIDs[idx], nil
	}
	return "custodian-tx", nil
}

type fakeSessions struct {
	err   error
	calls int
}

func (f *fakeSessions) Authenticate(ctx context.Context) (*nexuspay.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &nexuspay.Session{BearerToken: "tok", Cookie: "sessid=s1; api_key=tok"}, nil
}

type fakeGateway struct {
	cashinResult *nexuspay.CashinResult
	cashinErr    error

	statusResult *nexuspay.StatusResult
	statusErr    error

	payoutLink string
	payoutErr  error

	linkOutcome nexuspay.PayoutOutcome
	linkMessage string
	linkErr     error
}

func (f *fakeGateway) CreateCashin(ctx context.Context, sess *nexuspay.Session, amount decimal.Decimal, webhookURL, redirectURL string) (*nexuspay.CashinResult, error) {
	return f.cashinResult, f.cashinErr
}

func (f *fakeGateway) CashinStatus(ctx context.Context, sess *nexuspay.Session, gatewayTxID string) (*nexuspay.StatusResult, error) {
	return f.statusResult, f.statusErr
}

func (f *fakeGateway) SubmitPayout(ctx context.Context, sess *nexuspay.Session, req nexuspay.PayoutRequest) (string, error) {
	return f.payoutLink, f.payoutErr
}

func (f *fakeGateway) ExecutePayoutLink(ctx context.Context, sess *nexuspay.Session, link string) (nexuspay.PayoutOutcome, string, error) {
	return f.linkOutcome, f.linkMessage, f.linkErr
}

var errTransferDown = errors.New("custodian timeout")
