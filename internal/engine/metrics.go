package engine

import (
	"github.com/shopspring/decimal"

	"trade-ledger/internal/types"
)

// CalculateMetrics derives sizing and the three return percentages for one
// matched trade. Every division is guarded: a non-positive denominator
// yields 0. Nothing is rounded here.
func CalculateMetrics(m types.MatchedTrade, acct types.AccountInputs) types.TradeMetrics {
	sizing := m.MatchedQuantity.Mul(m.BuyPrice).Mul(m.Multiplier)
	return types.TradeMetrics{
		Sizing:       sizing,
		PerTradePct:  percentOf(m.NetPnL, sizing),
		NetTradePct:  percentOf(m.NetPnL, acct.RiskUnit),
		AccountPct:   percentOf(m.NetPnL, acct.NetLiquidation),
		DurationDays: wholeDays(m.OpenTime(), m.CloseTime()),
	}
}

func percentOf(v, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return v.Div(base).Mul(hundred)
}

// closeTrades attaches metrics to every matched trade.
func closeTrades(matched []types.MatchedTrade, acct types.AccountInputs) []types.ClosedTrade {
	closed := make([]types.ClosedTrade, 0, len(matched))
	for _, m := range matched {
		closed = append(closed, types.ClosedTrade{
			MatchedTrade: m,
			Metrics:      CalculateMetrics(m, acct),
		})
	}
	return closed
}
