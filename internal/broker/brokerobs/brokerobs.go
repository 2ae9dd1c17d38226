package brokerobs

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/logger"
	"trade-ledger/internal/trace"
	"trade-ledger/internal/types"
)

// observableSource wraps an ExecutionSource with observability (logging & tracing)
type observableSource struct {
	source interfaces.ExecutionSource
}

// Compile-time interface check
var _ interfaces.ExecutionSource = (*observableSource)(nil)

// Wrap wraps a source with observability middleware
func Wrap(source interfaces.ExecutionSource) interfaces.ExecutionSource {
	return &observableSource{
		source: source,
	}
}

func (ob *observableSource) Name() string {
	return ob.source.Name()
}

// Executions fetches the raw batch with observability
func (ob *observableSource) Executions(ctx context.Context) ([]types.RawExecution, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Executions")
	defer span.End()

	start := time.Now()
	logger.DebugSkip(ctx, 1, "Fetching executions", "source", ob.source.Name())

	execs, err := ob.source.Executions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch executions", err,
			"source", ob.source.Name(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Executions fetched successfully",
		"source", ob.source.Name(),
		"count", len(execs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return execs, nil
}

// NetLiquidation fetches the account value with observability
func (ob *observableSource) NetLiquidation(ctx context.Context) (decimal.Decimal, error) {
	ctx, span := trace.StartSpan(ctx, "broker.NetLiquidation")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching net liquidation", "source", ob.source.Name())

	value, err := ob.source.NetLiquidation(ctx)
	if err != nil {
		// callers degrade to a zero net liquidation, so this is not an error
		logger.WarnSkip(ctx, 1, "Failed to fetch net liquidation", "source", ob.source.Name(), "error", err)
		return decimal.Zero, err
	}

	logger.DebugSkip(ctx, 1, "Net liquidation fetched successfully",
		"source", ob.source.Name(),
		"net_liquidation", value.String(),
	)
	return value, nil
}
