package paygram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/balance/pg-user-7", r.URL.Path)
		assert.Equal(t, "Bearer api-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"success":true,"balance":"1234.56"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-token", zerolog.Nop())
	balance, err := c.GetBalance(context.Background(), "pg-user-7")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1234.56")))
}

func TestGetBalanceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"unknown user"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-token", zerolog.Nop())
	_, err := c.GetBalance(context.Background(), "pg-user-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown user")
}

func TestTransferCarriesIdempotencyKey(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/transfer", r.URL.Path)
		keys = append(keys, r.Header.Get("X-Idempotency-Key"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "pg-user-7", payload["to_user_id"])
		assert.Equal(t, "500.00", payload["amount"])
		assert.Equal(t, "PHPT", payload["currency"])

		w.Write([]byte(`{"success":true,"transaction_id":"pg-tx-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-token", zerolog.Nop())

	txID, err := c.TransferToUser(context.Background(), "pg-user-7", decimal.NewFromInt(500), "cashin-42")
	require.NoError(t, err)
	assert.Equal(t, "pg-tx-1", txID)

	// The same key again on a retry of the same logical transfer.
	_, err = c.TransferToUser(context.Background(), "pg-user-7", decimal.NewFromInt(500), "cashin-42")
	require.NoError(t, err)
	assert.Equal(t, []string{"cashin-42", "cashin-42"}, keys)
}

func TestTransferGeneratesKeyWhenMissing(t *testing.T) {
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("X-Idempotency-Key")
		w.Write([]byte(`{"success":true,"transaction_id":"pg-tx-2"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-token", zerolog.Nop())
	_, err := c.Transfer(context.Background(), "pg-user-7", "escrow", decimal.NewFromInt(100), "")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
}

func TestTransferRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Insufficient balance"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-token", zerolog.Nop())
	_, err := c.TransferFromUser(context.Background(), "pg-user-7", decimal.NewFromInt(100), "k1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient balance")
}
