package engine

import (
	"errors"
	"fmt"

	"mirrortrade/internal/broker"
)

// DenyReason explains why the admission controller refused a signal.
type DenyReason string

const (
	DenyNoPosition       DenyReason = "no_position"
	DenyMaxSymbols       DenyReason = "max_symbols_reached"
	DenyPendingOrder     DenyReason = "pending_order"
	DenyShortingDisabled DenyReason = "shorting_disabled"
)

// Denial is a terminal admission refusal for one signal. Denials are never
// retried; the signal is consumed and the loop moves on.
type Denial struct {
	Reason DenyReason
	Symbol string
}

func (d *Denial) String() string {
	return fmt.Sprintf("%s denied: %s", d.Symbol, d.Reason)
}

// ExecErrKind classifies execution failures so the loop can apply the right
// policy without string-matching error messages.
type ExecErrKind string

const (
	// ErrBelowMinimumSize is a local rejection before any network call.
	ErrBelowMinimumSize ExecErrKind = "below_minimum_size"
	// ErrOrderRejected is a venue-side rejection of a submitted order.
	ErrOrderRejected ExecErrKind = "order_rejected"
	// ErrBracketLegFailed means the entry filled but a take-profit or
	// stop-loss leg was refused: the position is open without full
	// protection.
	ErrBracketLegFailed ExecErrKind = "bracket_leg_failed"
	// ErrGatewayTimeout is a transport failure talking to the venue.
	ErrGatewayTimeout ExecErrKind = "gateway_timeout"
)

// ExecutionError is a typed execution failure.
type ExecutionError struct {
	Kind   ExecErrKind
	Symbol string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Symbol, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Symbol, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// classifySubmitError maps a gateway error onto the execution taxonomy:
// venue rejections vs transport faults. Anything that is not an explicit
// rejection is treated as a transport failure, including deadline and
// net timeouts.
func classifySubmitError(symbol string, err error) *ExecutionError {
	kind := ErrGatewayTimeout
	if errors.Is(err, broker.ErrOrderRejected) {
		kind = ErrOrderRejected
	}
	return &ExecutionError{Kind: kind, Symbol: symbol, Err: err}
}
