// Package signal turns raw notification messages into normalized trading
// signals. It isolates all text parsing; the engine never sees raw text.
package signal

import (
	"context"

	"mirrortrade/internal/domain"
)

// Source yields normalized signals, oldest-first, without re-delivering a
// message the caller has already seen. Next returns nil when no new signal
// is pending.
type Source interface {
	Next(ctx context.Context) (*domain.Signal, error)
}
