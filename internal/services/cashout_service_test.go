package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"payverse/internal/models"
	"payverse/internal/nexuspay"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cashoutFixture struct {
	svc       *CashoutService
	mock      sqlmock.Sqlmock
	custodian *fakeCustodian
	sessions  *fakeSessions
	gateway   *fakeGateway
}

func newCashoutFixture(t *testing.T) *cashoutFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	custodian := &fakeCustodian{balance: decimal.NewFromInt(10000)}
	sessions := &fakeSessions{}
	gateway := &fakeGateway{}

	svc := NewCashoutService(
		NewLedgerService(db, zerolog.Nop()),
		NewUserService(db, zerolog.Nop()),
		custodian, sessions, gateway,
		"escrow-wallet", zerolog.Nop(),
	)
	return &cashoutFixture{svc: svc, mock: mock, custodian: custodian, sessions: sessions, gateway: gateway}
}

func (f *cashoutFixture) expectWalletLink() {
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM wallet_links WHERE user_id = ?")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(walletLinkCols).
			AddRow(1, 7, "pg-user-7", true, nil, testTime, testTime))
}

func (f *cashoutFixture) expectPayoutInsert(txType, status string) {
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions (sender_id, receiver_id, amount, type, status, wallet_type, note, external_tx_id) VALUES (?, NULL, ?, ?, ?, ?, ?, ?)")).
		WithArgs(7, sqlmock.AnyArg(), txType, status, "php", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(9, 1))
}

func cashoutRequest() *models.CashoutRequest {
	return &models.CashoutRequest{
		Amount:        decimal.NewFromInt(1500),
		AccountNumber: "09171234567",
		AccountName:   "Juan Dela Cruz",
		Provider:      "gcash",
	}
}

func TestCashoutValidation(t *testing.T) {
	f := newCashoutFixture(t)

	req := cashoutRequest()
	req.Amount = decimal.Zero
	_, err := f.svc.Initiate(context.Background(), 7, req)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	req = cashoutRequest()
	req.AccountNumber = ""
	_, err = f.svc.Initiate(context.Background(), 7, req)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.Empty(t, f.custodian.calls)
}

func TestCashoutInsufficientCustodianBalance(t *testing.T) {
	f := newCashoutFixture(t)
	f.custodian.balance = decimal.NewFromInt(100)
	f.expectWalletLink()

	_, err := f.svc.Initiate(context.Background(), 7, cashoutRequest())
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Empty(t, f.custodian.calls, "pre-check failure must not move funds")
}

func TestCashoutHappyPath(t *testing.T) {
	f := newCashoutFixture(t)
	f.gateway.payoutLink = "https://pay.example/payout/x"
	f.gateway.linkOutcome = nexuspay.PayoutOutcomeSuccess

	f.expectWalletLink()
	f.expectPayoutInsert("qrph_payout", "completed")

	resp, err := f.svc.Initiate(context.Background(), 7, cashoutRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "completed", resp.Status)

	require.Len(t, f.custodian.calls, 1, "only the escrow debit")
	call := f.custodian.calls[0]
	assert.Equal(t, "pg-user-7", call.From)
	assert.Equal(t, "escrow-wallet", call.To)
	assert.True(t, call.Amount.Equal(decimal.NewFromInt(1500)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCashoutRefundsOnSubmitFailure(t *testing.T) {
	f := newCashoutFixture(t)
	f.gateway.payoutErr = errors.New("gateway rejected payout: bad account")

	f.expectWalletLink()
	f.expectPayoutInsert("qrph_payout_failed", "refunded")

	resp, err := f.svc.Initiate(context.Background(), 7, cashoutRequest())
	require.NoError(t, err, "a compensated failure is not an error to the caller")
	assert.False(t, resp.Success)
	assert.True(t, resp.Refunded)
	assert.Equal(t, "refunded", resp.Status)

	require.Len(t, f.custodian.calls, 2)
	refund := f.custodian.calls[1]
	assert.Equal(t, "escrow-wallet", refund.From)
	assert.Equal(t, "pg-user-7", refund.To)
	assert.True(t, refund.Amount.Equal(decimal.NewFromInt(1500)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCashoutRefundsOnPayoutLinkError(t *testing.T) {
	f := newCashoutFixture(t)
	f.gateway.payoutLink = "https://pay.example/payout/x"
	f.gateway.linkOutcome = nexuspay.PayoutOutcomeError
	f.gateway.linkMessage = "account closed"

	f.expectWalletLink()
	f.expectPayoutInsert("qrph_payout_failed", "refunded")

	resp, err := f.svc.Initiate(context.Background(), 7, cashoutRequest())
	require.NoError(t, err)
	assert.True(t, resp.Refunded)
	require.Len(t, f.custodian.calls, 2)
}

func TestCashoutRefundFailureIsDistinctFromRefunded(t *testing.T) {
	f := newCashoutFixture(t)
	f.gateway.payoutErr = errors.New("gateway down")
	// Escrow debit succeeds, the refund attempt fails.
	f.custodian.transferErrs = []error{nil, errTransferDown}

	f.expectWalletLink()
	f.expectPayoutInsert("qrph_payout_failed", "failed")

	resp, err := f.svc.Initiate(context.Background(), 7, cashoutRequest())
	assert.ErrorIs(t, err, ErrRefundFailed)
	require.NotNil(t, resp)
	assert.False(t, resp.Refunded)
	assert.Equal(t, "failed", resp.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCashoutAmbiguousOutcomeIsNotCompensated(t *testing.T) {
	f := newCashoutFixture(t)
	f.gateway.payoutLink = "https://pay.example/payout/x"
	f.gateway.linkOutcome = nexuspay.PayoutOutcomeAmbiguous

	f.expectWalletLink()
	f.expectPayoutInsert("qrph_payout", "pending")

	resp, err := f.svc.Initiate(context.Background(), 7, cashoutRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "pending", resp.Status)
	assert.Len(t, f.custodian.calls, 1, "ambiguous must neither refund nor re-send")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
