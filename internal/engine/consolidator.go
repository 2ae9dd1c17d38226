package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/types"
)

const DefaultAnnotationSeparator = "; "

// SummarizeClosed turns each closed trade into a single-trade summary row.
func SummarizeClosed(closed []types.ClosedTrade) []types.TradeSummary {
	rows := make([]types.TradeSummary, 0, len(closed))
	for _, c := range closed {
		rows = append(rows, types.TradeSummary{
			InstrumentKey:   c.InstrumentKey,
			SecurityType:    c.SecurityType,
			OpenTime:        c.OpenTime(),
			CloseTime:       c.CloseTime(),
			DurationDays:    c.Metrics.DurationDays,
			Quantity:        c.MatchedQuantity,
			BuyPrice:        c.BuyPrice,
			SellPrice:       c.SellPrice,
			Sizing:          c.Metrics.Sizing,
			TotalCommission: c.TotalCommission,
			GrossPnL:        c.GrossPnL,
			NetPnL:          c.NetPnL,
			PerTradePct:     c.Metrics.PerTradePct,
			NetTradePct:     c.Metrics.NetTradePct,
			AccountPct:      c.Metrics.AccountPct,
			TradeCount:      1,
			Notes:           c.Notes,
		})
	}
	return rows
}

// SummarizeOpen turns each unmatched residual into a single-lot row.
func SummarizeOpen(unmatched []types.UnmatchedExecution) []types.OpenPositionSummary {
	rows := make([]types.OpenPositionSummary, 0, len(unmatched))
	for _, u := range unmatched {
		rows = append(rows, types.OpenPositionSummary{
			InstrumentKey: u.InstrumentKey,
			SecurityType:  u.SecurityType,
			OpenTime:      u.TradeTime,
			Side:          u.Side,
			Quantity:      u.Quantity,
			Price:         u.Price,
			Multiplier:    u.Multiplier,
			Sizing:        u.Quantity.Mul(u.Price).Mul(u.Multiplier),
			Commission:    u.Commission,
			LotCount:      1,
		})
	}
	return rows
}

// ConsolidateTrades folds rows sharing an instrument key into one row. Keys
// keep the order of their first row. A single-row group is returned as is.
//
// Additive fields are summed, prices are quantity weighted and per-trade %
// is the plain mean. A multi-row group whose quantities sum to zero has no
// defined average price and is left out with a warning.
func ConsolidateTrades(rows []types.TradeSummary, sep string) ([]types.TradeSummary, []types.Warning) {
	out := []types.TradeSummary{}
	var warnings []types.Warning
	for _, grp := range groupRows(rows, func(r types.TradeSummary) string { return r.InstrumentKey }) {
		if len(grp) == 1 {
			out = append(out, grp[0])
			continue
		}
		merged, ok := mergeTrades(grp, sep)
		if !ok {
			warnings = append(warnings, skippedAggregate(grp[0].InstrumentKey, len(grp)))
			continue
		}
		out = append(out, merged)
	}
	return out, warnings
}

func mergeTrades(grp []types.TradeSummary, sep string) (types.TradeSummary, bool) {
	first, last := grp[0], grp[len(grp)-1]
	merged := types.TradeSummary{
		InstrumentKey: first.InstrumentKey,
		SecurityType:  first.SecurityType,
		OpenTime:      first.OpenTime,
		CloseTime:     last.CloseTime,
	}

	var buyNotional, sellNotional, pctSum decimal.Decimal
	notes := make([]types.Annotations, 0, len(grp))
	for _, r := range grp {
		merged.DurationDays += r.DurationDays
		merged.Quantity = merged.Quantity.Add(r.Quantity)
		merged.Sizing = merged.Sizing.Add(r.Sizing)
		merged.TotalCommission = merged.TotalCommission.Add(r.TotalCommission)
		merged.GrossPnL = merged.GrossPnL.Add(r.GrossPnL)
		merged.NetPnL = merged.NetPnL.Add(r.NetPnL)
		merged.NetTradePct = merged.NetTradePct.Add(r.NetTradePct)
		merged.AccountPct = merged.AccountPct.Add(r.AccountPct)
		merged.TradeCount += r.TradeCount
		buyNotional = buyNotional.Add(r.BuyPrice.Mul(r.Quantity))
		sellNotional = sellNotional.Add(r.SellPrice.Mul(r.Quantity))
		pctSum = pctSum.Add(r.PerTradePct)
		notes = append(notes, r.Notes)
	}
	if merged.Quantity.IsZero() {
		return types.TradeSummary{}, false
	}
	merged.BuyPrice = buyNotional.Div(merged.Quantity)
	merged.SellPrice = sellNotional.Div(merged.Quantity)
	merged.PerTradePct = pctSum.Div(decimal.NewFromInt(int64(len(grp))))
	merged.Notes = joinAnnotations(notes, sep)
	return merged, true
}

// ConsolidateOpenPositions folds open lots sharing an instrument key into one
// row with a quantity-weighted price and the earliest lot's date.
func ConsolidateOpenPositions(rows []types.OpenPositionSummary) ([]types.OpenPositionSummary, []types.Warning) {
	out := []types.OpenPositionSummary{}
	var warnings []types.Warning
	for _, grp := range groupRows(rows, func(r types.OpenPositionSummary) string { return r.InstrumentKey }) {
		if len(grp) == 1 {
			out = append(out, grp[0])
			continue
		}
		merged := types.OpenPositionSummary{
			InstrumentKey: grp[0].InstrumentKey,
			SecurityType:  grp[0].SecurityType,
			OpenTime:      grp[0].OpenTime,
			Side:          grp[0].Side,
			Multiplier:    grp[0].Multiplier,
		}
		var notional decimal.Decimal
		for _, r := range grp {
			merged.Quantity = merged.Quantity.Add(r.Quantity)
			merged.Sizing = merged.Sizing.Add(r.Sizing)
			merged.Commission = merged.Commission.Add(r.Commission)
			merged.LotCount += r.LotCount
			notional = notional.Add(r.Price.Mul(r.Quantity))
		}
		if merged.Quantity.IsZero() {
			warnings = append(warnings, skippedAggregate(merged.InstrumentKey, len(grp)))
			continue
		}
		merged.Price = notional.Div(merged.Quantity)
		out = append(out, merged)
	}
	return out, warnings
}

func groupRows[T any](rows []T, key func(T) string) [][]T {
	index := make(map[string]int)
	var groups [][]T
	for _, r := range rows {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}

func skippedAggregate(key string, n int) types.Warning {
	return types.Warning{
		Kind:    types.WarnAggregateSkipped,
		Index:   -1,
		Record:  key,
		Field:   "quantity",
		Message: fmt.Sprintf("%d rows sum to zero quantity, no weighted average", n),
	}
}

func joinAnnotations(notes []types.Annotations, sep string) types.Annotations {
	pick := func(get func(types.Annotations) string) string {
		var parts []string
		for _, n := range notes {
			if v := strings.TrimSpace(get(n)); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, sep)
	}
	return types.Annotations{
		Entry:      pick(func(a types.Annotations) string { return a.Entry }),
		Stop:       pick(func(a types.Annotations) string { return a.Stop }),
		Target:     pick(func(a types.Annotations) string { return a.Target }),
		Takeaways:  pick(func(a types.Annotations) string { return a.Takeaways }),
		TakeAgain:  pick(func(a types.Annotations) string { return a.TakeAgain }),
		Verdict:    pick(func(a types.Annotations) string { return a.Verdict }),
		Reasoning:  pick(func(a types.Annotations) string { return a.Reasoning }),
		Psychology: pick(func(a types.Annotations) string { return a.Psychology }),
	}
}
