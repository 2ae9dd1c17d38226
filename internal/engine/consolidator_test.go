package engine

import (
	"reflect"
	"testing"
	"time"

	"trade-ledger/internal/types"
)

func summary(key, qty, buy, sell, net, perTrade string, days int, open, closeAt time.Time) types.TradeSummary {
	return types.TradeSummary{
		InstrumentKey: key,
		SecurityType:  types.SecurityEquity,
		OpenTime:      open,
		CloseTime:     closeAt,
		DurationDays:  days,
		Quantity:      dec(qty),
		BuyPrice:      dec(buy),
		SellPrice:     dec(sell),
		NetPnL:        dec(net),
		GrossPnL:      dec(net),
		PerTradePct:   dec(perTrade),
		AccountPct:    dec("0.1"),
		TradeCount:    1,
	}
}

func TestConsolidateTrades_WeightedAverage(t *testing.T) {
	rows := []types.TradeSummary{
		summary("X", "100", "10", "12", "200", "20", 1, t0, t0.Add(24*time.Hour)),
		summary("X", "300", "20", "21", "300", "5", 2, t0.Add(time.Hour), t0.Add(72*time.Hour)),
	}

	out, warns := ConsolidateTrades(rows, "; ")

	if len(warns) != 0 {
		t.Fatalf("Expected no warnings, got %v", warns)
	}
	if len(out) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(out))
	}
	got := out[0]
	if !got.BuyPrice.Equal(dec("17.5")) {
		t.Errorf("Expected weighted buy 17.5, got %s", got.BuyPrice)
	}
	if !got.SellPrice.Equal(dec("18.75")) {
		t.Errorf("Expected weighted sell 18.75, got %s", got.SellPrice)
	}
	if !got.Quantity.Equal(dec("400")) || !got.NetPnL.Equal(dec("500")) {
		t.Errorf("Expected summed qty 400 / net 500, got %s / %s", got.Quantity, got.NetPnL)
	}
	if !got.PerTradePct.Equal(dec("12.5")) {
		t.Errorf("Expected mean per-trade 12.5, got %s", got.PerTradePct)
	}
	if !got.AccountPct.Equal(dec("0.2")) {
		t.Errorf("Expected summed account 0.2, got %s", got.AccountPct)
	}
	if got.DurationDays != 3 {
		t.Errorf("Expected summed duration 3, got %d", got.DurationDays)
	}
	if !got.OpenTime.Equal(t0) || !got.CloseTime.Equal(t0.Add(72*time.Hour)) {
		t.Errorf("unexpected dates %v - %v", got.OpenTime, got.CloseTime)
	}
	if got.TradeCount != 2 {
		t.Errorf("Expected trade count 2, got %d", got.TradeCount)
	}
}

func TestConsolidateTrades_SingleRowPassesThrough(t *testing.T) {
	row := summary("X", "3", "10.123456789", "11", "2.5", "7.777777777", 1, t0, t0)

	out, _ := ConsolidateTrades([]types.TradeSummary{row}, "; ")

	if len(out) != 1 || !reflect.DeepEqual(out[0], row) {
		t.Errorf("Expected row unchanged, got %+v", out)
	}
}

func TestConsolidateTrades_Idempotent(t *testing.T) {
	rows := []types.TradeSummary{
		summary("A", "100", "10", "12", "200", "20", 1, t0, t0),
		summary("B", "5", "1", "2", "5", "100", 0, t0, t0),
		summary("A", "300", "20", "21", "300", "5", 2, t0, t0),
	}

	once, _ := ConsolidateTrades(rows, "; ")
	twice, _ := ConsolidateTrades(once, "; ")

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Expected consolidation to be idempotent\nonce:  %+v\ntwice: %+v", once, twice)
	}
	if len(once) != 2 || once[0].InstrumentKey != "A" || once[1].InstrumentKey != "B" {
		t.Errorf("Expected keys in first-appearance order, got %+v", once)
	}
}

func TestConsolidateTrades_ZeroQuantitySkipped(t *testing.T) {
	rows := []types.TradeSummary{
		summary("X", "0", "10", "12", "0", "0", 0, t0, t0),
		summary("X", "0", "11", "12", "0", "0", 0, t0, t0),
	}

	out, warns := ConsolidateTrades(rows, "; ")

	if len(out) != 0 {
		t.Errorf("Expected group to be skipped, got %+v", out)
	}
	if len(warns) != 1 || warns[0].Kind != types.WarnAggregateSkipped {
		t.Errorf("Expected one AGGREGATE_SKIPPED warning, got %v", warns)
	}
}

func TestConsolidateTrades_JoinsAnnotations(t *testing.T) {
	a := summary("X", "1", "10", "12", "2", "20", 0, t0, t0)
	a.Notes.Takeaways = "waited for the pullback"
	b := summary("X", "1", "10", "12", "2", "20", 0, t0, t0)
	c := summary("X", "1", "10", "12", "2", "20", 0, t0, t0)
	c.Notes.Takeaways = "sized too small"

	out, _ := ConsolidateTrades([]types.TradeSummary{a, b, c}, " | ")

	if want := "waited for the pullback | sized too small"; out[0].Notes.Takeaways != want {
		t.Errorf("Expected %q, got %q", want, out[0].Notes.Takeaways)
	}
	if out[0].Notes.Verdict != "" {
		t.Errorf("Expected empty verdict, got %q", out[0].Notes.Verdict)
	}
}

func TestConsolidateOpenPositions(t *testing.T) {
	rows := SummarizeOpen([]types.UnmatchedExecution{
		{ExecutionRecord: lot("X", types.SideBuy, "100", "10", t0.Add(time.Hour))},
		{ExecutionRecord: lot("X", types.SideBuy, "300", "20", t0.Add(2*time.Hour))},
		{ExecutionRecord: lot("Y", types.SideSell, "5", "7", t0)},
	})

	out, warns := ConsolidateOpenPositions(rows)

	if len(warns) != 0 || len(out) != 2 {
		t.Fatalf("Expected 2 rows and no warnings, got %d / %v", len(out), warns)
	}
	x := out[0]
	if !x.Price.Equal(dec("17.5")) || !x.Quantity.Equal(dec("400")) || !x.Sizing.Equal(dec("7000")) {
		t.Errorf("unexpected X row %+v", x)
	}
	if !x.OpenTime.Equal(t0.Add(time.Hour)) || x.LotCount != 2 {
		t.Errorf("Expected earliest date and 2 lots, got %v / %d", x.OpenTime, x.LotCount)
	}
	if out[1].Side != types.SideSell {
		t.Errorf("Expected Y to keep its side, got %s", out[1].Side)
	}
}

func TestConsolidateOpenPositions_ZeroQuantitySkipped(t *testing.T) {
	rows := SummarizeOpen([]types.UnmatchedExecution{
		{ExecutionRecord: lot("X", types.SideBuy, "0", "10", t0)},
		{ExecutionRecord: lot("X", types.SideBuy, "0", "12", t0.Add(time.Hour))},
		{ExecutionRecord: lot("Y", types.SideBuy, "5", "7", t0)},
	})

	out, warns := ConsolidateOpenPositions(rows)

	if len(out) != 1 || out[0].InstrumentKey != "Y" {
		t.Errorf("Expected only Y to remain, got %+v", out)
	}
	if len(warns) != 1 || warns[0].Kind != types.WarnAggregateSkipped || warns[0].Record != "X" {
		t.Errorf("Expected one AGGREGATE_SKIPPED warning for X, got %v", warns)
	}
}

func TestCalculateMetrics_ZeroSizing(t *testing.T) {
	m := CalculateMetrics(types.MatchedTrade{
		MatchedQuantity: dec("10"),
		BuyPrice:        dec("0"),
		Multiplier:      dec("1"),
		NetPnL:          dec("5"),
	}, types.AccountInputs{NetLiquidation: dec("-1"), RiskUnit: dec("100")})

	if !m.PerTradePct.IsZero() {
		t.Errorf("Expected per-trade 0 for zero sizing, got %s", m.PerTradePct)
	}
	if !m.AccountPct.IsZero() {
		t.Errorf("Expected account 0 for negative net liq, got %s", m.AccountPct)
	}
	if !m.NetTradePct.Equal(dec("5")) {
		t.Errorf("Expected fixed-unit 5, got %s", m.NetTradePct)
	}
}
