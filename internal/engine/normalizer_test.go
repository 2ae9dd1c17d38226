package engine

import (
	"encoding/json"
	"testing"
	"time"

	"trade-ledger/internal/types"
)

func normalizeOne(t *testing.T, raw types.RawExecution) (types.ExecutionRecord, []types.Warning, bool) {
	t.Helper()
	n := NewNormalizer(func() time.Time { return t0 })
	recs, warns := n.Normalize([]types.RawExecution{raw})
	if len(recs) == 0 {
		return types.ExecutionRecord{}, warns, false
	}
	return recs[0], warns, true
}

func TestNormalize_FieldSynonyms(t *testing.T) {
	rec, warns, ok := normalizeOne(t, types.RawExecution{
		"ticker":         "MSFT",
		"assetClass":     "STK",
		"action":         "SLD",
		"qty":            json.Number("-25"),
		"avgPrice":       "321.50",
		"comission":      "1,000.25",
		"netAmount":      -8036.25,
		"fill_timestamp": "2025-08-10T14:30:00Z",
	})
	if !ok {
		t.Fatalf("Expected record to be admitted, warnings %v", warns)
	}
	if len(warns) != 0 {
		t.Errorf("Expected no warnings, got %v", warns)
	}
	if rec.Symbol != "MSFT" || rec.Side != types.SideSell {
		t.Errorf("unexpected symbol/side %s/%s", rec.Symbol, rec.Side)
	}
	if !rec.Quantity.Equal(dec("25")) {
		t.Errorf("Expected unsigned quantity 25, got %s", rec.Quantity)
	}
	if !rec.Price.Equal(dec("321.5")) || !rec.Commission.Equal(dec("1000.25")) {
		t.Errorf("unexpected price/commission %s/%s", rec.Price, rec.Commission)
	}
	if !rec.TradeTime.Equal(time.Date(2025, 8, 10, 14, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected trade time %v", rec.TradeTime)
	}
}

func TestNormalize_PriorityOrder(t *testing.T) {
	rec, _, _ := normalizeOne(t, types.RawExecution{
		"symbol": "AAPL",
		"ticker": "IGNORED",
		"side":   "B",
		"size":   10,
		"qty":    99,
		"price":  1,
	})
	if rec.Symbol != "AAPL" || !rec.Quantity.Equal(dec("10")) {
		t.Errorf("Expected first listed keys to win, got %s / %s", rec.Symbol, rec.Quantity)
	}
}

func TestNormalize_TimeFormats(t *testing.T) {
	want := time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)
	inputs := []any{
		"20250801-09:30:00",
		"20250801 09:30:00",
		"20250801;093000",
		"2025-08-01T09:30:00Z",
		"2025-08-01 09:30:00",
		"2025-08-01T09:30",
		"2025-08-01T09:30Z",
		"2025-08-01T11:30+02:00",
		"20250801T093000Z",
		"20250801T113000+0200",
		want.UnixMilli(),
		float64(want.UnixMilli()),
		json.Number("1754040600000"),
	}
	for _, in := range inputs {
		rec, warns, _ := normalizeOne(t, types.RawExecution{"symbol": "A", "side": "BUY", "size": 1, "price": 1, "trade_time": in})
		if !rec.TradeTime.Equal(want) {
			t.Errorf("trade_time %v: got %v, want %v (warnings %v)", in, rec.TradeTime, want, warns)
		}
	}
}

func TestNormalize_BadFieldsDefaultWithWarnings(t *testing.T) {
	rec, warns, ok := normalizeOne(t, types.RawExecution{
		"symbol":     "AAPL",
		"side":       "BUY",
		"size":       "abc",
		"price":      "n/a",
		"trade_time": "yesterday",
	})
	if !ok {
		t.Fatal("Expected record with bad numerics to be admitted")
	}
	if !rec.Quantity.IsZero() || !rec.Price.IsZero() {
		t.Errorf("Expected defaulted zeros, got %s/%s", rec.Quantity, rec.Price)
	}
	if !rec.TradeTime.Equal(t0) {
		t.Errorf("Expected clock time for unparseable timestamp, got %v", rec.TradeTime)
	}
	kinds := map[types.WarningKind]int{}
	for _, w := range warns {
		kinds[w.Kind]++
		if w.Record != "AAPL" {
			t.Errorf("Expected warning to name the record, got %q", w.Record)
		}
	}
	if kinds[types.WarnFieldDefaulted] != 2 || kinds[types.WarnTimeDefaulted] != 1 {
		t.Errorf("unexpected warning mix %v", kinds)
	}
}

func TestNormalize_SideInferredFromSign(t *testing.T) {
	rec, _, ok := normalizeOne(t, types.RawExecution{"symbol": "AAPL", "size": -5, "price": 1, "trade_time": "20250801"})
	if !ok || rec.Side != types.SideSell {
		t.Errorf("Expected SELL from negative quantity, got %s (ok=%v)", rec.Side, ok)
	}
}

func TestNormalize_UnresolvableSideDropped(t *testing.T) {
	_, warns, ok := normalizeOne(t, types.RawExecution{"symbol": "AAPL", "side": "HOLD", "price": 1})
	if ok {
		t.Error("Expected record to be dropped")
	}
	if len(warns) == 0 || warns[len(warns)-1].Kind != types.WarnRecordDropped {
		t.Errorf("Expected RECORD_DROPPED warning, got %v", warns)
	}
}

func TestNormalize_OptionMultiplier(t *testing.T) {
	rec, _, _ := normalizeOne(t, types.RawExecution{
		"symbol": "AAPL", "sec_type": "OPT", "side": "B", "size": 2, "price": "3.10",
		"strike": "150", "expiry": "20250919", "put_or_call": "P", "multiplier": 10,
	})
	if !rec.Multiplier.Equal(dec("100")) {
		t.Errorf("Expected option multiplier 100, got %s", rec.Multiplier)
	}
	if rec.InstrumentKey != "AAPL 09/19/2025 $150P" {
		t.Errorf("unexpected key %q", rec.InstrumentKey)
	}
}

func TestNormalize_EquityMultiplierDefaultsToOne(t *testing.T) {
	rec, _, _ := normalizeOne(t, types.RawExecution{"symbol": "ES", "sec_type": "FUT", "side": "B", "size": 1, "price": 5000, "multiplier": 50})
	if !rec.Multiplier.Equal(dec("50")) {
		t.Errorf("Expected source multiplier 50, got %s", rec.Multiplier)
	}

	rec, _, _ = normalizeOne(t, types.RawExecution{"symbol": "AAPL", "side": "B", "size": 1, "price": 1})
	if !rec.Multiplier.Equal(dec("1")) || rec.SecurityType != types.SecurityEquity {
		t.Errorf("Expected equity with multiplier 1, got %s %s", rec.SecurityType, rec.Multiplier)
	}
}
