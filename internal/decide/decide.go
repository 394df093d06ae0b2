// Package decide produces binary long/short recommendations for the futures
// bot. The engine treats the provider as opaque: it is consulted once per
// idle poll cycle and its internals are not part of the trading invariants.
package decide

import (
	"context"
)

// Direction is the recommended side of a new position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Decision is one recommendation with its supporting reason.
type Decision struct {
	Direction Direction
	Reason    string
}

// Provider yields a trading decision for the configured market.
type Provider interface {
	Decide(ctx context.Context) (Decision, error)
}
