package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawExecution is one execution report as delivered by a source, before any
// field coercion. Keys and value types vary by endpoint.
type RawExecution map[string]any

type SecurityType string

const (
	SecurityEquity SecurityType = "EQUITY"
	SecurityOption SecurityType = "OPTION"
	SecurityOther  SecurityType = "OTHER"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type Right string

const (
	RightCall Right = "CALL"
	RightPut  Right = "PUT"
)

// Letter returns the single-letter form used inside option instrument keys.
func (r Right) Letter() string {
	switch r {
	case RightCall:
		return "C"
	case RightPut:
		return "P"
	}
	return string(r)
}

// ExecutionRecord is the canonical, typed execution every stage after the
// normalizer works with. Quantity is never signed; Side carries direction.
type ExecutionRecord struct {
	Index         int          `json:"index"` // position in the source batch, used for stable ties
	ExecutionID   string       `json:"execution_id,omitempty"`
	Symbol        string       `json:"symbol"`
	InstrumentKey string       `json:"instrument_key"`
	SecurityType  SecurityType `json:"security_type"`
	RawSecType    string       `json:"raw_sec_type,omitempty"`
	Side          Side         `json:"side"`

	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
	NetAmount  decimal.Decimal `json:"net_amount"`
	Multiplier decimal.Decimal `json:"multiplier"`
	TradeTime  time.Time       `json:"trade_time"`

	Strike decimal.Decimal `json:"strike,omitempty"`
	Expiry string          `json:"expiry,omitempty"`
	Right  Right           `json:"right,omitempty"`
}

// UnmatchedExecution is the residual of an execution that found no
// opposite-side counterpart: an open position.
type UnmatchedExecution struct {
	ExecutionRecord
}

// MatchedTrade pairs one buy lot with one sell lot at MatchedQuantity.
type MatchedTrade struct {
	InstrumentKey   string          `json:"instrument_key"`
	SecurityType    SecurityType    `json:"security_type"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	MatchedQuantity decimal.Decimal `json:"matched_quantity"`
	BuyPrice        decimal.Decimal `json:"buy_price"`
	SellPrice       decimal.Decimal `json:"sell_price"`
	BuyTime         time.Time       `json:"buy_time"`
	SellTime        time.Time       `json:"sell_time"`
	BuyExecutionID  string          `json:"buy_execution_id,omitempty"`
	SellExecutionID string          `json:"sell_execution_id,omitempty"`
	BuyNetAmount    decimal.Decimal `json:"buy_net_amount"`
	SellNetAmount   decimal.Decimal `json:"sell_net_amount"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	GrossPnL        decimal.Decimal `json:"gross_pnl"`
	NetPnL          decimal.Decimal `json:"net_pnl"`
}

// OpenTime is the earlier of the two legs; a short sale opens on the sell.
func (m MatchedTrade) OpenTime() time.Time {
	if m.SellTime.Before(m.BuyTime) {
		return m.SellTime
	}
	return m.BuyTime
}

// CloseTime is the later of the two legs.
func (m MatchedTrade) CloseTime() time.Time {
	if m.SellTime.After(m.BuyTime) {
		return m.SellTime
	}
	return m.BuyTime
}

// AccountInputs are the scalars the metrics calculator needs besides the trade.
type AccountInputs struct {
	NetLiquidation decimal.Decimal `json:"net_liquidation"`
	RiskUnit       decimal.Decimal `json:"risk_unit"`
}

// TradeMetrics holds full-precision derived figures; rounding happens in the
// report assembler only.
type TradeMetrics struct {
	Sizing       decimal.Decimal `json:"sizing"`
	PerTradePct  decimal.Decimal `json:"per_trade_pct"`
	NetTradePct  decimal.Decimal `json:"net_trade_pct"`
	AccountPct   decimal.Decimal `json:"account_pct"`
	DurationDays int             `json:"duration_days"`
}

// Annotations are free-text review columns. The engine never fills them; they
// exist so the consolidator and writers can carry manual notes through.
type Annotations struct {
	Entry      string `json:"entry,omitempty"`
	Stop       string `json:"stop,omitempty"`
	Target     string `json:"target,omitempty"`
	Takeaways  string `json:"takeaways,omitempty"`
	TakeAgain  string `json:"take_again,omitempty"`
	Verdict    string `json:"verdict,omitempty"`
	Reasoning  string `json:"reasoning,omitempty"`
	Psychology string `json:"psychology,omitempty"`
}

// ClosedTrade is a matched trade with its metrics attached.
type ClosedTrade struct {
	MatchedTrade
	Metrics TradeMetrics `json:"metrics"`
	Notes   Annotations  `json:"notes"`
}

// TradeSummary is one consolidated closed-trade row per instrument key.
type TradeSummary struct {
	InstrumentKey   string          `json:"instrument_key"`
	SecurityType    SecurityType    `json:"security_type"`
	OpenTime        time.Time       `json:"open_time"`
	CloseTime       time.Time       `json:"close_time"`
	DurationDays    int             `json:"duration_days"`
	Quantity        decimal.Decimal `json:"quantity"`
	BuyPrice        decimal.Decimal `json:"buy_price"`
	SellPrice       decimal.Decimal `json:"sell_price"`
	Sizing          decimal.Decimal `json:"sizing"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	GrossPnL        decimal.Decimal `json:"gross_pnl"`
	NetPnL          decimal.Decimal `json:"net_pnl"`
	PerTradePct     decimal.Decimal `json:"per_trade_pct"`
	NetTradePct     decimal.Decimal `json:"net_trade_pct"`
	AccountPct      decimal.Decimal `json:"account_pct"`
	TradeCount      int             `json:"trade_count"`
	Notes           Annotations     `json:"notes"`
}

// OpenPositionSummary is one consolidated open-position row per instrument key.
type OpenPositionSummary struct {
	InstrumentKey string          `json:"instrument_key"`
	SecurityType  SecurityType    `json:"security_type"`
	OpenTime      time.Time       `json:"open_time"`
	Side          Side            `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	Sizing        decimal.Decimal `json:"sizing"`
	Commission    decimal.Decimal `json:"commission"`
	LotCount      int             `json:"lot_count"`
}

// LedgerStats summarises one reconciliation run.
type LedgerStats struct {
	RawRecords     int             `json:"raw_records"`
	Admitted       int             `json:"admitted"`
	Dropped        int             `json:"dropped"`
	Instruments    int             `json:"instruments"`
	MatchedTrades  int             `json:"matched_trades"`
	OpenLots       int             `json:"open_lots"`
	GrossPnL       decimal.Decimal `json:"gross_pnl"`
	NetPnL         decimal.Decimal `json:"net_pnl"`
	Commission     decimal.Decimal `json:"commission"`
	NetLiquidation decimal.Decimal `json:"net_liquidation"`
}

// Ledger is everything one reconciliation run produces.
type Ledger struct {
	Matched       []MatchedTrade        `json:"matched"`
	Unmatched     []UnmatchedExecution  `json:"unmatched"`
	Closed        []ClosedTrade         `json:"closed"`
	Trades        []TradeSummary        `json:"trades"`
	OpenPositions []OpenPositionSummary `json:"open_positions"`
	Warnings      []Warning             `json:"warnings"`
	Stats         LedgerStats           `json:"stats"`
}
