package services

import (
	"context"

	"payverse/internal/nexuspay"

	"github.com/shopspring/decimal"
)

// CustodianClient is the surface of the PayGram wallet API the reconciliation
// core consumes. Implemented by paygram.Client; faked in tests.
type CustodianClient interface {
	GetBalance(ctx context.Context, userHandle string) (decimal.Decimal, error)
	TransferToUser(ctx context.Context, userHandle string, amount decimal.Decimal, idemKey string) (string, error)
	TransferFromUser(ctx context.Context, userHandle string, amount decimal.Decimal, idemKey string) (string, error)
	Transfer(ctx context.Context, fromHandle, toHandle string, amount decimal.Decimal, idemKey string) (string, error)
}

// GatewaySessions negotiates per-call NexusPay sessions.
type GatewaySessions interface {
	Authenticate(ctx context.Context) (*nexuspay.Session, error)
}

// GatewayClient is the NexusPay API surface the state machines consume.
type GatewayClient interface {
	CreateCashin(ctx context.Context, sess *nexuspay.Session, amount decimal.Decimal, webhookURL, redirectURL string) (*nexuspay.CashinResult, error)
	CashinStatus(ctx context.Context, sess *nexuspay.Session, gatewayTxID string) (*nexuspay.StatusResult, error)
	SubmitPayout(ctx context.Context, sess *nexuspay.Session, req nexuspay.PayoutRequest) (string, error)
	ExecutePayoutLink(ctx context.Context, sess *nexuspay.Session, link string) (nexuspay.PayoutOutcome, string, error)
}
