package report

import (
	"strconv"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/types"
)

const dateLayout = "2006-01-02"

// Presentation precision. Computation stays at full precision; rounding
// happens only when a row is rendered.
const (
	moneyPlaces      = 2
	percentPlaces    = 2
	accountPctPlaces = 4
)

// TradeRow is one rendered closed-trade line. Field order is column order.
type TradeRow struct {
	Trade       string `csv:"TRADE" json:"trade"`
	OpenDate    string `csv:"DATE (OPEN)" json:"open_date"`
	CloseDate   string `csv:"TIME (CLOSE)" json:"close_date"`
	Duration    string `csv:"DURATION" json:"duration"`
	Sizing      string `csv:"Sizing" json:"sizing"`
	Outcome     string `csv:"OUTCOME" json:"outcome"`
	PerTradePct string `csv:"Per Trade % Gain/Loss" json:"per_trade_pct"`
	FixedPct    string `csv:"Fixed Unit % Gain/Loss" json:"fixed_unit_pct"`
	AccountPct  string `csv:"Net % Gain/Loss" json:"account_pct"`
	Entry       string `csv:"ENTRY" json:"entry"`
	Stop        string `csv:"STOP" json:"stop"`
	Target      string `csv:"TARGET" json:"target"`
	Takeaways   string `csv:"TAKEAWAYS" json:"takeaways"`
	TakeAgain   string `csv:"Would I take this trade again?" json:"take_again"`
	Verdict     string `csv:"Verdict" json:"verdict"`
	Reasoning   string `csv:"Reasoning" json:"reasoning"`
	Psychology  string `csv:"Psychology" json:"psychology"`
}

var tradeHeaders = []string{
	"TRADE", "DATE (OPEN)", "TIME (CLOSE)", "DURATION", "Sizing", "OUTCOME",
	"Per Trade % Gain/Loss", "Fixed Unit % Gain/Loss", "Net % Gain/Loss",
	"ENTRY", "STOP", "TARGET", "TAKEAWAYS", "Would I take this trade again?",
	"Verdict", "Reasoning", "Psychology",
}

func (r TradeRow) values() []string {
	return []string{
		r.Trade, r.OpenDate, r.CloseDate, r.Duration, r.Sizing, r.Outcome,
		r.PerTradePct, r.FixedPct, r.AccountPct,
		r.Entry, r.Stop, r.Target, r.Takeaways, r.TakeAgain,
		r.Verdict, r.Reasoning, r.Psychology,
	}
}

// OpenRow is one rendered open-position line.
type OpenRow struct {
	Trade    string `csv:"TRADE" json:"trade"`
	OpenDate string `csv:"DATE (OPEN)" json:"open_date"`
	Side     string `csv:"SIDE" json:"side"`
	Quantity string `csv:"QUANTITY" json:"quantity"`
	Price    string `csv:"PRICE" json:"price"`
	Sizing   string `csv:"Sizing" json:"sizing"`
}

var openHeaders = []string{"TRADE", "DATE (OPEN)", "SIDE", "QUANTITY", "PRICE", "Sizing"}

func (r OpenRow) values() []string {
	return []string{r.Trade, r.OpenDate, r.Side, r.Quantity, r.Price, r.Sizing}
}

// Sheet is the rendered form of a ledger that every writer serializes.
type Sheet struct {
	Trades        []TradeRow        `json:"trades"`
	OpenPositions []OpenRow         `json:"open_positions"`
	Warnings      []types.Warning   `json:"warnings"`
	Stats         types.LedgerStats `json:"stats"`
}

// Assemble renders ledger rows with presentation rounding applied.
func Assemble(ledger *types.Ledger) Sheet {
	sheet := Sheet{
		Trades:        make([]TradeRow, 0, len(ledger.Trades)),
		OpenPositions: make([]OpenRow, 0, len(ledger.OpenPositions)),
		Warnings:      ledger.Warnings,
		Stats:         ledger.Stats,
	}
	if sheet.Warnings == nil {
		sheet.Warnings = []types.Warning{}
	}
	for _, t := range ledger.Trades {
		sheet.Trades = append(sheet.Trades, TradeRow{
			Trade:       t.InstrumentKey,
			OpenDate:    t.OpenTime.Format(dateLayout),
			CloseDate:   t.CloseTime.Format(dateLayout),
			Duration:    strconv.Itoa(t.DurationDays),
			Sizing:      fixed(t.Sizing, moneyPlaces),
			Outcome:     fixed(t.NetPnL, moneyPlaces),
			PerTradePct: fixed(t.PerTradePct, percentPlaces),
			FixedPct:    fixed(t.NetTradePct, percentPlaces),
			AccountPct:  fixed(t.AccountPct, accountPctPlaces),
			Entry:       t.Notes.Entry,
			Stop:        t.Notes.Stop,
			Target:      t.Notes.Target,
			Takeaways:   t.Notes.Takeaways,
			TakeAgain:   t.Notes.TakeAgain,
			Verdict:     t.Notes.Verdict,
			Reasoning:   t.Notes.Reasoning,
			Psychology:  t.Notes.Psychology,
		})
	}
	for _, p := range ledger.OpenPositions {
		sheet.OpenPositions = append(sheet.OpenPositions, OpenRow{
			Trade:    p.InstrumentKey,
			OpenDate: p.OpenTime.Format(dateLayout),
			Side:     string(p.Side),
			Quantity: p.Quantity.String(),
			Price:    fixed(p.Price, moneyPlaces),
			Sizing:   fixed(p.Sizing, moneyPlaces),
		})
	}
	return sheet
}

func fixed(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
