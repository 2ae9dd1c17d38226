package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/types"
)

// Field name priority lists. Each concept is looked up once, in this order,
// and the first present key wins.
var (
	symbolFields     = []string{"symbol", "ticker", "tradingsymbol", "conid"}
	secTypeFields    = []string{"sec_type", "secType", "asset_class", "assetClass"}
	sideFields       = []string{"side", "action", "buy_sell", "buySell", "transaction_type", "transactionType"}
	quantityFields   = []string{"size", "quantity", "qty", "filled_quantity"}
	priceFields      = []string{"price", "avg_price", "avgPrice", "average_price", "trade_price"}
	commissionFields = []string{"commission", "comission", "commissions", "fees"}
	netAmountFields  = []string{"net_amount", "netAmount", "amount"}
	timeFields       = []string{"trade_time", "trade_time_r", "tradeTime", "fill_timestamp", "time", "date"}
	multiplierFields = []string{"multiplier", "mult"}
	strikeFields     = []string{"strike", "strike_price"}
	expiryFields     = []string{"expiry", "expiration", "maturity_date", "last_trading_day"}
	rightFields      = []string{"right", "put_or_call", "putOrCall"}
	execIDFields     = []string{"execution_id", "executionId", "exec_id", "trade_id"}
)

var optionMultiplier = decimal.NewFromInt(100)

// Normalizer coerces raw execution maps into canonical records.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer returns a normalizer that stamps unparseable timestamps with
// now(). A nil clock means time.Now.
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize converts the whole batch. Records are never dropped for bad
// numeric or time fields; only a missing symbol or an unresolvable side
// excludes a record.
func (n *Normalizer) Normalize(raws []types.RawExecution) ([]types.ExecutionRecord, []types.Warning) {
	records := make([]types.ExecutionRecord, 0, len(raws))
	var warnings []types.Warning
	for i, raw := range raws {
		rec, warns, ok := n.normalizeOne(i, raw)
		warnings = append(warnings, warns...)
		if ok {
			records = append(records, rec)
		}
	}
	return records, warnings
}

type recordScope struct {
	index    int
	label    string
	warnings []types.Warning
}

func (s *recordScope) warn(kind types.WarningKind, field, format string, args ...any) {
	s.warnings = append(s.warnings, types.Warning{
		Kind:    kind,
		Index:   s.index,
		Record:  s.label,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

func (n *Normalizer) normalizeOne(index int, raw types.RawExecution) (types.ExecutionRecord, []types.Warning, bool) {
	rec := types.ExecutionRecord{Index: index}
	scope := &recordScope{index: index, label: recordLabel(index, raw)}

	if v, _, ok := lookup(raw, execIDFields); ok {
		rec.ExecutionID = toString(v)
	}

	symbol, _, ok := lookup(raw, symbolFields)
	if !ok {
		scope.warn(types.WarnRecordDropped, "symbol", "no symbol, ticker or conid present")
		return rec, scope.warnings, false
	}
	rec.Symbol = toString(symbol)

	rec.SecurityType, rec.RawSecType = resolveSecType(raw)

	signedQty := n.decimalField(scope, raw, quantityFields, "quantity", true)
	rec.Quantity = signedQty.Abs()
	rec.Price = n.decimalField(scope, raw, priceFields, "price", true).Abs()
	rec.Commission = n.decimalField(scope, raw, commissionFields, "commission", false).Abs()
	rec.NetAmount = n.decimalField(scope, raw, netAmountFields, "net_amount", false)

	side, ok := resolveSide(scope, raw, signedQty)
	if !ok {
		return rec, scope.warnings, false
	}
	rec.Side = side

	if v, field, found := lookup(raw, timeFields); found {
		t, parsed := parseTradeTime(v)
		if !parsed {
			t = n.now().UTC()
			scope.warn(types.WarnTimeDefaulted, field, "unparseable timestamp %q, using current time", toString(v))
		}
		rec.TradeTime = t
	} else {
		rec.TradeTime = n.now().UTC()
		scope.warn(types.WarnTimeDefaulted, "trade_time", "no timestamp present, using current time")
	}

	if rec.SecurityType == types.SecurityOption {
		rec.Multiplier = optionMultiplier
		rec.Strike = n.decimalField(scope, raw, strikeFields, "strike", false)
		if v, _, found := lookup(raw, expiryFields); found {
			rec.Expiry = toString(v)
		}
		if v, _, found := lookup(raw, rightFields); found {
			rec.Right = resolveRight(toString(v))
		}
	} else {
		rec.Multiplier = n.decimalField(scope, raw, multiplierFields, "multiplier", false)
		if !rec.Multiplier.IsPositive() {
			rec.Multiplier = decimal.NewFromInt(1)
		}
	}

	rec.InstrumentKey = ResolveKey(rec)
	if strings.TrimSpace(rec.InstrumentKey) == "" || rec.Symbol == "" {
		scope.warn(types.WarnRecordDropped, "symbol", "instrument key could not be resolved")
		return rec, scope.warnings, false
	}
	return rec, scope.warnings, true
}

// decimalField coerces one numeric concept. Unparseable values become zero
// with a warning; an absent required field also warns.
func (n *Normalizer) decimalField(scope *recordScope, raw types.RawExecution, names []string, concept string, required bool) decimal.Decimal {
	v, field, ok := lookup(raw, names)
	if !ok {
		if required {
			scope.warn(types.WarnFieldDefaulted, concept, "missing, defaulted to 0")
		}
		return decimal.Zero
	}
	d, err := toDecimal(v)
	if err != nil {
		scope.warn(types.WarnFieldDefaulted, field, "cannot parse %q (%v), defaulted to 0", toString(v), err)
		return decimal.Zero
	}
	return d
}

func resolveSecType(raw types.RawExecution) (types.SecurityType, string) {
	v, _, ok := lookup(raw, secTypeFields)
	if !ok {
		return types.SecurityEquity, ""
	}
	rawType := strings.ToUpper(toString(v))
	switch rawType {
	case "STK", "STOCK", "EQUITY", "EQ", "CS", "ETF":
		return types.SecurityEquity, rawType
	case "OPT", "OPTION", "OPTIONS":
		return types.SecurityOption, rawType
	default:
		return types.SecurityOther, rawType
	}
}

// resolveSide reads the side field; without one, the sign of the reported
// quantity decides (negative is a sale).
func resolveSide(scope *recordScope, raw types.RawExecution, signedQty decimal.Decimal) (types.Side, bool) {
	if v, field, ok := lookup(raw, sideFields); ok {
		switch strings.ToUpper(toString(v)) {
		case "B", "BUY", "BOT", "BOUGHT":
			return types.SideBuy, true
		case "S", "SELL", "SLD", "SOLD", "SELL_SHORT", "SSHORT":
			return types.SideSell, true
		}
		if signedQty.IsZero() {
			scope.warn(types.WarnRecordDropped, field, "unrecognised side %q", toString(v))
			return "", false
		}
		scope.warn(types.WarnFieldDefaulted, field, "unrecognised side %q, inferred from quantity sign", toString(v))
	} else if signedQty.IsZero() {
		scope.warn(types.WarnRecordDropped, "side", "no side and no signed quantity")
		return "", false
	}
	if signedQty.IsNegative() {
		return types.SideSell, true
	}
	return types.SideBuy, true
}

func resolveRight(v string) types.Right {
	switch strings.ToUpper(v) {
	case "C", "CALL":
		return types.RightCall
	case "P", "PUT":
		return types.RightPut
	}
	return types.Right(strings.ToUpper(v))
}

func recordLabel(index int, raw types.RawExecution) string {
	label := fmt.Sprintf("#%d", index)
	if v, _, ok := lookup(raw, symbolFields); ok {
		label = toString(v)
	}
	if v, _, ok := lookup(raw, execIDFields); ok {
		label += " exec " + toString(v)
	}
	return label
}
