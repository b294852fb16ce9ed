package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"payverse/internal/services"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

var transactionCols = []string{"id", "sender_id", "receiver_id", "amount", "type", "status", "wallet_type", "note", "external_tx_id", "created_at", "updated_at"}

func newWebhookHandler(t *testing.T) (*WebhookHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cashin := services.NewCashinService(
		services.NewLedgerService(db, zerolog.Nop()),
		services.NewUserService(db, zerolog.Nop()),
		nil, nil, nil,
		"https://wallet.example", zerolog.Nop(),
	)
	return NewWebhookHandler(cashin, zerolog.Nop()), mock
}

func postWebhook(t *testing.T, h *WebhookHandler, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/nexuspay/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decoded))
	return rec.Code, decoded
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	h, _ := newWebhookHandler(t)

	// Undecodable body, missing reference, and a failed status all get 200:
	// any other status code makes the gateway re-deliver.
	for _, body := range []string{
		`not json at all`,
		`{"status":"paid","amount":"500.00"}`,
		`{"transactionId":"gw-1","status":"failed","amount":"500.00"}`,
	} {
		code, decoded := postWebhook(t, h, body)
		assert.Equal(t, http.StatusOK, code, "body %q", body)
		assert.Equal(t, true, decoded["received"], "body %q", body)
	}
}

func TestWebhookInvalidAmountReportedInBody(t *testing.T) {
	h, _ := newWebhookHandler(t)

	code, decoded := postWebhook(t, h, `{"transactionId":"gw-1","status":"paid","amount":"0"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, decoded["received"])
	assert.Equal(t, "rejected", decoded["outcome"])
	assert.Equal(t, "invalid amount", decoded["error"])
}

func TestWebhookToleratesSnakeCaseFields(t *testing.T) {
	h, mock := newWebhookHandler(t)

	mock.ExpectQuery(regexp.QuoteMeta("external_tx_id = ?")).
		WithArgs("qrph_cashin", "gw-2").
		WillReturnRows(sqlmock.NewRows(transactionCols).
			AddRow(42, nil, 7, "500.00", "qrph_cashin", "completed", "php", "note", "gw-2", testTime, testTime))

	code, decoded := postWebhook(t, h, `{"transaction_id":"gw-2","transaction_status":"successful","total_amount":500}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "already_completed", decoded["outcome"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookUnmatchedTransaction(t *testing.T) {
	h, mock := newWebhookHandler(t)

	mock.ExpectQuery(regexp.QuoteMeta("external_tx_id = ?")).
		WillReturnRows(sqlmock.NewRows(transactionCols))
	mock.ExpectQuery(regexp.QuoteMeta("note LIKE ?")).
		WillReturnRows(sqlmock.NewRows(transactionCols))

	code, decoded := postWebhook(t, h, `{"transactionId":"gw-unknown","status":"paid","amount":"500.00"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "unmatched", decoded["outcome"])
}
