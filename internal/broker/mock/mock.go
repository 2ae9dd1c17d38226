package mock

import (
	"context"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/types"
)

// Source serves a fixed demo batch: three equity round trips and a
// 100,000 account.
type Source struct{}

var _ interfaces.ExecutionSource = Source{}

func New() Source { return Source{} }

func (Source) Name() string { return "MOCK" }

func (Source) Executions(ctx context.Context) ([]types.RawExecution, error) {
	return []types.RawExecution{
		{"execution_id": "M-1", "symbol": "AAPL", "sec_type": "STK", "side": "B", "size": 100, "price": "190.00", "commission": "0", "trade_time": "20250801-09:30:00"},
		{"execution_id": "M-2", "symbol": "TSLA", "sec_type": "STK", "side": "B", "size": 50, "price": "250.00", "commission": "0", "trade_time": "20250802-10:00:00"},
		{"execution_id": "M-3", "symbol": "TSLA", "sec_type": "STK", "side": "S", "size": 50, "price": "244.00", "commission": "0", "trade_time": "20250803-15:59:00"},
		{"execution_id": "M-4", "symbol": "AAPL", "sec_type": "STK", "side": "S", "size": 100, "price": "195.00", "commission": "0", "trade_time": "20250805-15:59:00"},
		{"execution_id": "M-5", "symbol": "MSFT", "sec_type": "STK", "side": "B", "size": 200, "price": "320.00", "commission": "0", "trade_time": "20250810-09:30:00"},
		{"execution_id": "M-6", "symbol": "MSFT", "sec_type": "STK", "side": "S", "size": 200, "price": "325.00", "commission": "0", "trade_time": "20250815-16:00:00"},
	}, nil
}

func (Source) NetLiquidation(ctx context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(100000), nil
}
