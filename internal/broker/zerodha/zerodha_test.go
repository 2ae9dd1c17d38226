package zerodha

import (
	"context"
	"errors"
	"testing"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"

	"trade-ledger/internal/interfaces"
)

type fakeKite struct {
	trades  kiteconnect.Trades
	margins kiteconnect.AllMargins
	err     error
}

func (f *fakeKite) GetTrades() (kiteconnect.Trades, error) {
	return f.trades, f.err
}

func (f *fakeKite) GetUserMargins() (kiteconnect.AllMargins, error) {
	return f.margins, f.err
}

func TestExecutions_MapsTrades(t *testing.T) {
	fill := time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)
	kc := &fakeKite{trades: kiteconnect.Trades{
		{TradeID: "T1", TradingSymbol: "INFY", Exchange: "NSE", TransactionType: "BUY", Quantity: 10, AveragePrice: 1500.5, FillTimestamp: models.Time{Time: fill}},
		{TradeID: "T2", TradingSymbol: "NIFTY25AUG24000CE", Exchange: "NFO", TransactionType: "SELL", Quantity: 75, AveragePrice: 120},
	}}
	z := newZerodha(Params{APIKey: "k", AccessToken: "t"}, kc)

	execs, err := z.Executions(context.Background())
	if err != nil {
		t.Fatalf("Executions() error = %v", err)
	}
	if len(execs) != 2 {
		t.Fatalf("Expected 2 executions, got %d", len(execs))
	}
	if execs[0]["sec_type"] != "EQ" {
		t.Errorf("sec_type = %v, want EQ", execs[0]["sec_type"])
	}
	if execs[0]["fill_timestamp"] != "2025-08-01T09:30:00Z" {
		t.Errorf("fill_timestamp = %v", execs[0]["fill_timestamp"])
	}
	if execs[1]["sec_type"] != "NFO" {
		t.Errorf("sec_type = %v, want NFO", execs[1]["sec_type"])
	}
	if _, ok := execs[1]["fill_timestamp"]; ok {
		t.Error("Expected no fill_timestamp for a trade without timestamps")
	}
}

func TestExecutions_MissingCredentials(t *testing.T) {
	z := newZerodha(Params{}, &fakeKite{})
	if _, err := z.Executions(context.Background()); !errors.Is(err, interfaces.ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", err)
	}
}

func TestExecutions_APIError(t *testing.T) {
	z := newZerodha(Params{APIKey: "k", AccessToken: "t"}, &fakeKite{err: errors.New("token expired")})
	if _, err := z.Executions(context.Background()); !errors.Is(err, interfaces.ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", err)
	}
}

func TestNetLiquidation_UsesEquityNet(t *testing.T) {
	kc := &fakeKite{}
	kc.margins.Equity.Net = 250000.75
	z := newZerodha(Params{APIKey: "k", AccessToken: "t"}, kc)

	got, err := z.NetLiquidation(context.Background())
	if err != nil {
		t.Fatalf("NetLiquidation() error = %v", err)
	}
	if got.String() != "250000.75" {
		t.Errorf("NetLiquidation() = %s, want 250000.75", got)
	}
}
