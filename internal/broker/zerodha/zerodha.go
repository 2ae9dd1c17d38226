package zerodha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/logger"
	"trade-ledger/internal/types"
)

type Params struct {
	APIKey      string
	AccessToken string
}

// Zerodha reads the day's trade book and equity margin from Kite Connect.
type Zerodha struct {
	p  Params
	kc kiteAPI
}

var _ interfaces.ExecutionSource = (*Zerodha)(nil)

func newZerodha(p Params, kc kiteAPI) *Zerodha {
	return &Zerodha{p: p, kc: kc}
}

func (z *Zerodha) Name() string { return "KITE" }

func (z *Zerodha) Executions(ctx context.Context) ([]types.RawExecution, error) {
	if err := z.checkCredentials(); err != nil {
		return nil, err
	}
	trades, err := z.kc.GetTrades()
	if err != nil {
		return nil, fmt.Errorf("%w: kite trades: %v", interfaces.ErrSourceUnavailable, err)
	}

	execs := make([]types.RawExecution, 0, len(trades))
	for _, t := range trades {
		execs = append(execs, tradeToRaw(t))
	}
	logger.Debug(ctx, "Executions fetched", "source", z.Name(), "count", len(execs))
	return execs, nil
}

// NetLiquidation uses the net equity margin as the account value.
func (z *Zerodha) NetLiquidation(ctx context.Context) (decimal.Decimal, error) {
	if err := z.checkCredentials(); err != nil {
		return decimal.Zero, err
	}
	margins, err := z.kc.GetUserMargins()
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: kite margins: %v", interfaces.ErrSourceUnavailable, err)
	}
	return decimal.NewFromFloat(margins.Equity.Net), nil
}

func (z *Zerodha) checkCredentials() error {
	if z.p.APIKey == "" || z.p.AccessToken == "" {
		return fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, errors.New("missing API key/access token"))
	}
	return nil
}

// tradeToRaw maps a Kite trade onto the field names the normalizer reads.
// Derivative quantities are already in units, so F&O trades are tagged with
// their exchange instead of as options, which keeps the multiplier at 1.
func tradeToRaw(t kiteconnect.Trade) types.RawExecution {
	raw := types.RawExecution{
		"execution_id":     t.TradeID,
		"tradingsymbol":    t.TradingSymbol,
		"sec_type":         secType(t.Exchange),
		"transaction_type": t.TransactionType,
		"quantity":         t.Quantity,
		"average_price":    t.AveragePrice,
		"commission":       0.0,
	}
	if ts := fillTime(t); !ts.IsZero() {
		raw["fill_timestamp"] = ts.UTC().Format(time.RFC3339)
	}
	return raw
}

func fillTime(t kiteconnect.Trade) time.Time {
	if !t.FillTimestamp.Time.IsZero() {
		return t.FillTimestamp.Time
	}
	return t.ExchangeTimestamp.Time
}

func secType(exchange string) string {
	switch strings.ToUpper(exchange) {
	case "NSE", "BSE":
		return "EQ"
	case "":
		return ""
	default:
		return strings.ToUpper(exchange)
	}
}
