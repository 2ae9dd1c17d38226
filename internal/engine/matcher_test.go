package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/types"
)

var t0 = time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func raw(symbol, side string, qty, price, commission any, at time.Time) types.RawExecution {
	return types.RawExecution{
		"symbol":     symbol,
		"sec_type":   "STK",
		"side":       side,
		"size":       qty,
		"price":      price,
		"commission": commission,
		"trade_time": at.Format("20060102-15:04:05"),
	}
}

func lot(key string, side types.Side, qty, price string, at time.Time) types.ExecutionRecord {
	return types.ExecutionRecord{
		Symbol:        key,
		InstrumentKey: key,
		SecurityType:  types.SecurityEquity,
		Side:          side,
		Quantity:      dec(qty),
		Price:         dec(price),
		Commission:    decimal.Zero,
		Multiplier:    decimal.NewFromInt(1),
		TradeTime:     at,
	}
}

func reconcile(raws []types.RawExecution, netLiq, riskUnit string) *types.Ledger {
	eng := NewWithOptions(Options{Workers: 4, Clock: func() time.Time { return t0 }})
	return eng.Reconcile(context.Background(), raws, types.AccountInputs{
		NetLiquidation: dec(netLiq),
		RiskUnit:       dec(riskUnit),
	})
}

func TestReconcile_SingleRoundTrip(t *testing.T) {
	ledger := reconcile([]types.RawExecution{
		raw("AAPL", "BUY", 100, 190, 1, t0),
		raw("AAPL", "SELL", 100, 200, 1, t0.Add(96*time.Hour)),
	}, "100000", "1000")

	if len(ledger.Matched) != 1 {
		t.Fatalf("Expected 1 matched trade, got %d", len(ledger.Matched))
	}
	m := ledger.Closed[0]
	if !m.GrossPnL.Equal(dec("1000")) {
		t.Errorf("Expected gross 1000, got %s", m.GrossPnL)
	}
	if !m.NetPnL.Equal(dec("998")) {
		t.Errorf("Expected net 998, got %s", m.NetPnL)
	}
	if !m.Metrics.Sizing.Equal(dec("19000")) {
		t.Errorf("Expected sizing 19000, got %s", m.Metrics.Sizing)
	}
	if got := m.Metrics.PerTradePct.Round(2); !got.Equal(dec("5.25")) {
		t.Errorf("Expected per-trade 5.25, got %s", got)
	}
	if !m.Metrics.NetTradePct.Equal(dec("99.8")) {
		t.Errorf("Expected fixed-unit 99.8, got %s", m.Metrics.NetTradePct)
	}
	if !m.Metrics.AccountPct.Equal(dec("0.998")) {
		t.Errorf("Expected account 0.998, got %s", m.Metrics.AccountPct)
	}
	if m.Metrics.DurationDays != 4 {
		t.Errorf("Expected duration 4, got %d", m.Metrics.DurationDays)
	}
	if len(ledger.Unmatched) != 0 || len(ledger.OpenPositions) != 0 {
		t.Errorf("Expected no open positions, got %d", len(ledger.Unmatched))
	}
}

func TestReconcile_PartialFills(t *testing.T) {
	ledger := reconcile([]types.RawExecution{
		raw("AAPL", "BUY", 150, 190, 0, t0),
		raw("AAPL", "SELL", 100, 200, 0, t0.Add(time.Hour)),
		raw("AAPL", "SELL", 50, 205, 0, t0.Add(2*time.Hour)),
	}, "100000", "1000")

	if len(ledger.Matched) != 2 {
		t.Fatalf("Expected 2 matched trades, got %d", len(ledger.Matched))
	}
	wants := []struct{ qty, gross string }{{"100", "1000"}, {"50", "750"}}
	for i, w := range wants {
		m := ledger.Matched[i]
		if !m.MatchedQuantity.Equal(dec(w.qty)) {
			t.Errorf("trade %d: Expected qty %s, got %s", i, w.qty, m.MatchedQuantity)
		}
		if !m.GrossPnL.Equal(dec(w.gross)) {
			t.Errorf("trade %d: Expected gross %s, got %s", i, w.gross, m.GrossPnL)
		}
	}
	if len(ledger.Unmatched) != 0 {
		t.Errorf("Expected zero leftovers, got %d", len(ledger.Unmatched))
	}
}

func TestReconcile_LoneBuyIsOpen(t *testing.T) {
	ledger := reconcile([]types.RawExecution{raw("AAPL", "BUY", 100, 190, 0, t0)}, "100000", "1000")

	if len(ledger.Matched) != 0 {
		t.Errorf("Expected 0 matched trades, got %d", len(ledger.Matched))
	}
	if len(ledger.Unmatched) != 1 || !ledger.Unmatched[0].Quantity.Equal(dec("100")) {
		t.Fatalf("Expected one open lot of 100, got %+v", ledger.Unmatched)
	}
	if len(ledger.OpenPositions) != 1 || !ledger.OpenPositions[0].Sizing.Equal(dec("19000")) {
		t.Errorf("unexpected open positions %+v", ledger.OpenPositions)
	}
}

func TestReconcile_EmptyInput(t *testing.T) {
	ledger := reconcile(nil, "100000", "1000")

	if ledger.Trades == nil || len(ledger.Trades) != 0 {
		t.Errorf("Expected empty non-nil trades, got %v", ledger.Trades)
	}
	if ledger.OpenPositions == nil || len(ledger.OpenPositions) != 0 {
		t.Errorf("Expected empty non-nil open positions, got %v", ledger.OpenPositions)
	}
	if len(ledger.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", ledger.Warnings)
	}
}

func TestReconcile_ZeroNetLiquidation(t *testing.T) {
	ledger := reconcile([]types.RawExecution{
		raw("AAPL", "BUY", 100, 190, 0, t0),
		raw("AAPL", "SELL", 100, 200, 0, t0.Add(time.Hour)),
	}, "0", "0")

	m := ledger.Closed[0].Metrics
	if !m.AccountPct.IsZero() || !m.NetTradePct.IsZero() {
		t.Errorf("Expected zero percentages, got account %s fixed %s", m.AccountPct, m.NetTradePct)
	}
}

func TestReconcile_DropsRecordWithoutSymbol(t *testing.T) {
	ledger := reconcile([]types.RawExecution{
		{"side": "BUY", "size": 10, "price": 5},
		raw("AAPL", "BUY", 100, 190, 0, t0),
	}, "100000", "1000")

	if ledger.Stats.Dropped != 1 || ledger.Stats.Admitted != 1 {
		t.Errorf("Expected 1 dropped and 1 admitted, got %+v", ledger.Stats)
	}
	if len(ledger.Warnings) == 0 || ledger.Warnings[0].Kind != types.WarnRecordDropped {
		t.Errorf("Expected a dropped-record warning, got %v", ledger.Warnings)
	}
}

func TestMatchGroup_QuantityConservation(t *testing.T) {
	records := []types.ExecutionRecord{
		lot("X", types.SideBuy, "30", "10", t0),
		lot("X", types.SideSell, "45", "11", t0.Add(time.Minute)),
		lot("X", types.SideBuy, "70", "10.5", t0.Add(2*time.Minute)),
		lot("X", types.SideSell, "20", "12", t0.Add(3*time.Minute)),
		lot("X", types.SideSell, "15.5", "12", t0.Add(4*time.Minute)),
	}
	in := map[types.Side]decimal.Decimal{}
	for _, r := range records {
		in[r.Side] = in[r.Side].Add(r.Quantity)
	}

	matched, unmatched := MatchGroup(records)

	var matchedQty decimal.Decimal
	for _, m := range matched {
		matchedQty = matchedQty.Add(m.MatchedQuantity)
	}
	left := map[types.Side]decimal.Decimal{}
	for _, u := range unmatched {
		left[u.Side] = left[u.Side].Add(u.Quantity)
	}
	for _, side := range []types.Side{types.SideBuy, types.SideSell} {
		if got := matchedQty.Add(left[side]); !got.Equal(in[side]) {
			t.Errorf("%s: matched %s + open %s != input %s", side, matchedQty, left[side], in[side])
		}
	}
}

func TestMatchGroup_ResidualCommissionConserved(t *testing.T) {
	buy := lot("X", types.SideBuy, "150", "190", t0)
	buy.Commission = dec("3")
	sell := lot("X", types.SideSell, "100", "200", t0.Add(time.Hour))
	sell.Commission = dec("1")

	matched, unmatched := MatchGroup([]types.ExecutionRecord{buy, sell})

	if len(matched) != 1 || len(unmatched) != 1 {
		t.Fatalf("Expected 1 matched and 1 open, got %d/%d", len(matched), len(unmatched))
	}
	if !matched[0].TotalCommission.Equal(dec("3")) {
		t.Errorf("Expected matched commission 3 (2 + 1), got %s", matched[0].TotalCommission)
	}
	if !unmatched[0].Commission.Equal(dec("1")) {
		t.Errorf("Expected residual commission 1, got %s", unmatched[0].Commission)
	}
}

func TestMatchGroup_ResidualGoesToFront(t *testing.T) {
	records := []types.ExecutionRecord{
		lot("X", types.SideBuy, "100", "10", t0),
		lot("X", types.SideBuy, "100", "20", t0.Add(time.Minute)),
		lot("X", types.SideSell, "60", "30", t0.Add(2*time.Minute)),
		lot("X", types.SideSell, "60", "30", t0.Add(3*time.Minute)),
	}

	matched, _ := MatchGroup(records)

	if len(matched) != 3 {
		t.Fatalf("Expected 3 matched trades, got %d", len(matched))
	}
	wants := []struct{ qty, buyPrice string }{{"60", "10"}, {"40", "10"}, {"20", "20"}}
	for i, w := range wants {
		if !matched[i].MatchedQuantity.Equal(dec(w.qty)) || !matched[i].BuyPrice.Equal(dec(w.buyPrice)) {
			t.Errorf("trade %d: Expected %s @ %s, got %s @ %s", i, w.qty, w.buyPrice, matched[i].MatchedQuantity, matched[i].BuyPrice)
		}
	}
}

func TestMatchGroup_ZeroSizeLot(t *testing.T) {
	records := []types.ExecutionRecord{
		lot("X", types.SideBuy, "0", "10", t0),
		lot("X", types.SideSell, "50", "12", t0.Add(time.Minute)),
	}

	matched, unmatched := MatchGroup(records)

	if len(matched) != 0 {
		t.Errorf("Expected no matched trades, got %d", len(matched))
	}
	if len(unmatched) != 1 || !unmatched[0].Quantity.Equal(dec("50")) {
		t.Errorf("Expected the 50 sell to stay open, got %+v", unmatched)
	}
}

func TestMatchGroup_OnlySells(t *testing.T) {
	records := []types.ExecutionRecord{
		lot("X", types.SideSell, "10", "12", t0),
		lot("X", types.SideSell, "5", "12", t0.Add(time.Minute)),
	}

	matched, unmatched := MatchGroup(records)

	if len(matched) != 0 || len(unmatched) != 2 {
		t.Errorf("Expected 0 matched and 2 open, got %d/%d", len(matched), len(unmatched))
	}
}

func TestReconcile_DeterministicUnderPermutation(t *testing.T) {
	raws := []types.RawExecution{
		raw("AAPL", "BUY", 100, 190, 1, t0),
		raw("MSFT", "BUY", 10, 320, 1, t0.Add(time.Minute)),
		raw("AAPL", "SELL", 40, 195, 1, t0.Add(2*time.Minute)),
		raw("AAPL", "BUY", 20, 191, 1, t0.Add(3*time.Minute)),
		raw("MSFT", "SELL", 10, 330, 1, t0.Add(4*time.Minute)),
		raw("AAPL", "SELL", 80, 199, 1, t0.Add(5*time.Minute)),
	}
	base := byInstrument(reconcile(raws, "100000", "1000").Matched)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]types.RawExecution(nil), raws...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := byInstrument(reconcile(shuffled, "100000", "1000").Matched)
		for key, want := range base {
			if len(got[key]) != len(want) {
				t.Fatalf("%s: Expected %d trades, got %d", key, len(want), len(got[key]))
			}
			for j := range want {
				if !got[key][j].MatchedQuantity.Equal(want[j].MatchedQuantity) ||
					!got[key][j].NetPnL.Equal(want[j].NetPnL) {
					t.Errorf("%s trade %d differs after shuffle", key, j)
				}
			}
		}
	}
}

func byInstrument(matched []types.MatchedTrade) map[string][]types.MatchedTrade {
	out := map[string][]types.MatchedTrade{}
	for _, m := range matched {
		out[m.InstrumentKey] = append(out[m.InstrumentKey], m)
	}
	return out
}

func TestReconcile_NoCrossInstrumentMatching(t *testing.T) {
	ledger := reconcile([]types.RawExecution{
		raw("AAPL", "BUY", 100, 190, 0, t0),
		raw("MSFT", "SELL", 100, 320, 0, t0.Add(time.Minute)),
		{"symbol": "AAPL", "sec_type": "OPT", "side": "SELL", "size": 1, "price": 2, "strike": 150, "expiry": "20250919", "right": "C", "trade_time": "20250801-10:00:00"},
	}, "100000", "1000")

	if len(ledger.Matched) != 0 {
		t.Errorf("Expected no matches across instruments, got %+v", ledger.Matched)
	}
	if len(ledger.Unmatched) != 3 {
		t.Errorf("Expected 3 open lots, got %d", len(ledger.Unmatched))
	}
}
