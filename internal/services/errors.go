package services

import "errors"

// Failure taxonomy for the reconciliation core. Handlers translate these into
// structured JSON responses; nothing below ever reaches the wire raw.
var (
	// ErrInsufficientBalance is terminal and user-visible; never retried.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrGatewayUnavailable covers failed session negotiation, non-JSON
	// responses and an open circuit breaker. No local state is mutated.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrWalletNotLinked     = errors.New("custodial wallet not linked")
	ErrInvalidAmount       = errors.New("invalid amount")

	// ErrAlreadyClaimed means another caller won the pending->processing race.
	// Callers back off; the winner finishes the credit.
	ErrAlreadyClaimed = errors.New("transaction already being processed")

	// ErrRefundFailed is the one truly fatal case: the payout failed and the
	// compensating refund failed too. Requires human intervention.
	ErrRefundFailed = errors.New("payout failed and refund failed")
)
