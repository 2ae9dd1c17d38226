package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/logger"
	"trade-ledger/internal/types"
)

// Options tune one Engine. The zero value matches every instrument
// concurrently and reports unconsolidated rows.
type Options struct {
	// Workers bounds how many instruments are matched concurrently; 0 means no limit.
	Workers int
	// Consolidate folds rows per instrument key. When false every matched
	// trade and open lot is reported on its own row.
	Consolidate         bool
	AnnotationSeparator string
	// Clock stamps executions that carry no usable timestamp.
	Clock func() time.Time
}

type Engine struct {
	opts       Options
	normalizer *Normalizer
}

func newEngine(opts Options) *Engine {
	if opts.AnnotationSeparator == "" {
		opts.AnnotationSeparator = DefaultAnnotationSeparator
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{opts: opts, normalizer: NewNormalizer(opts.Clock)}
}

// Reconcile runs normalize, match, measure and consolidate over one batch.
// It holds no state between calls and never fails; an empty batch yields an
// empty ledger.
func (e *Engine) Reconcile(ctx context.Context, raws []types.RawExecution, acct types.AccountInputs) *types.Ledger {
	records, warnings := e.normalizer.Normalize(raws)
	logger.Debug(ctx, "Executions normalized",
		"raw", len(raws),
		"admitted", len(records),
		"warnings", len(warnings),
	)

	groups := groupByKey(records)
	matched, unmatched := matchAll(groups, e.opts.Workers)
	logger.Debug(ctx, "FIFO matching finished",
		"instruments", len(groups),
		"matched", len(matched),
		"unmatched", len(unmatched),
	)

	closed := closeTrades(matched, acct)
	trades := SummarizeClosed(closed)
	open := SummarizeOpen(unmatched)
	if e.opts.Consolidate {
		var tradeWarns, openWarns []types.Warning
		trades, tradeWarns = ConsolidateTrades(trades, e.opts.AnnotationSeparator)
		open, openWarns = ConsolidateOpenPositions(open)
		warnings = append(warnings, tradeWarns...)
		warnings = append(warnings, openWarns...)
	}
	if warnings == nil {
		warnings = []types.Warning{}
	}

	return &types.Ledger{
		Matched:       matched,
		Unmatched:     unmatched,
		Closed:        closed,
		Trades:        trades,
		OpenPositions: open,
		Warnings:      warnings,
		Stats:         ledgerStats(len(raws), len(records), len(groups), matched, unmatched, acct),
	}
}

func ledgerStats(raw, admitted, instruments int, matched []types.MatchedTrade, unmatched []types.UnmatchedExecution, acct types.AccountInputs) types.LedgerStats {
	stats := types.LedgerStats{
		RawRecords:     raw,
		Admitted:       admitted,
		Dropped:        raw - admitted,
		Instruments:    instruments,
		MatchedTrades:  len(matched),
		OpenLots:       len(unmatched),
		GrossPnL:       decimal.Zero,
		NetPnL:         decimal.Zero,
		Commission:     decimal.Zero,
		NetLiquidation: acct.NetLiquidation,
	}
	for _, m := range matched {
		stats.GrossPnL = stats.GrossPnL.Add(m.GrossPnL)
		stats.NetPnL = stats.NetPnL.Add(m.NetPnL)
		stats.Commission = stats.Commission.Add(m.TotalCommission)
	}
	return stats
}
