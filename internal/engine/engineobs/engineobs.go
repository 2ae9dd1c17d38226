package engineobs

import (
	"context"
	"time"

	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/logger"
	"trade-ledger/internal/trace"
	"trade-ledger/internal/types"
)

type observableReconciler struct {
	engine interfaces.Reconciler
}

var _ interfaces.Reconciler = (*observableReconciler)(nil)

func Wrap(eng interfaces.Reconciler) interfaces.Reconciler {
	return &observableReconciler{
		engine: eng,
	}
}

func (or *observableReconciler) Reconcile(ctx context.Context, raws []types.RawExecution, acct types.AccountInputs) *types.Ledger {
	ctx, span := trace.StartSpan(ctx, "engine.Reconcile")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting reconciliation",
		"executions", len(raws),
		"net_liquidation", acct.NetLiquidation.String(),
		"risk_unit", acct.RiskUnit.String(),
	)

	ledger := or.engine.Reconcile(ctx, raws, acct)

	if logger.IsDebugEnabled() {
		for _, m := range ledger.Matched {
			logger.Match(ctx, m.InstrumentKey, m.MatchedQuantity.String(), m.NetPnL.String(),
				"buy_id", m.BuyExecutionID,
				"sell_id", m.SellExecutionID,
			)
		}
	}
	for _, w := range ledger.Warnings {
		logger.Skip(ctx, string(w.Kind), w.Record, w.Message,
			"index", w.Index,
			"field", w.Field,
		)
	}

	logger.InfoSkip(ctx, 1, "Reconciliation completed",
		"admitted", ledger.Stats.Admitted,
		"dropped", ledger.Stats.Dropped,
		"instruments", ledger.Stats.Instruments,
		"matched_trades", ledger.Stats.MatchedTrades,
		"open_lots", ledger.Stats.OpenLots,
		"trade_rows", len(ledger.Trades),
		"open_rows", len(ledger.OpenPositions),
		"net_pnl", ledger.Stats.NetPnL.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return ledger
}
