package interfaces

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/types"
)

// ErrSourceUnavailable marks a failure to reach the execution source at all
// (transport error, non-2xx status). Callers check it with errors.Is; an empty
// execution list is not an error.
var ErrSourceUnavailable = errors.New("execution source unavailable")

// ExecutionSource is the brokerage-side collaborator: it supplies the raw
// execution batch and the account's net liquidation value.
type ExecutionSource interface {
	Name() string
	Executions(ctx context.Context) ([]types.RawExecution, error)
	NetLiquidation(ctx context.Context) (decimal.Decimal, error)
}
