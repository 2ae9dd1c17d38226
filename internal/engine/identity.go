package engine

import (
	"fmt"
	"time"

	"trade-ledger/internal/types"
)

// ResolveKey derives the matching key for one execution. Options that differ
// in strike, expiry or right always resolve to different keys.
//
//	EQUITY  AAPL
//	OPTION  AAPL 01/19/2024 $150C   (or "AAPL Option (CALL)" without strike/expiry)
//	OTHER   ES (FUT)
func ResolveKey(rec types.ExecutionRecord) string {
	switch rec.SecurityType {
	case types.SecurityEquity:
		return rec.Symbol
	case types.SecurityOption:
		if rec.Strike.IsZero() || rec.Expiry == "" {
			if rec.Right == "" {
				return rec.Symbol + " Option"
			}
			return fmt.Sprintf("%s Option (%s)", rec.Symbol, rec.Right)
		}
		return fmt.Sprintf("%s %s $%s%s", rec.Symbol, formatExpiry(rec.Expiry), rec.Strike.String(), rec.Right.Letter())
	default:
		secType := rec.RawSecType
		if secType == "" {
			secType = string(types.SecurityOther)
		}
		return fmt.Sprintf("%s (%s)", rec.Symbol, secType)
	}
}

// formatExpiry turns an 8-digit YYYYMMDD expiry into MM/DD/YYYY; anything it
// cannot parse passes through verbatim.
func formatExpiry(expiry string) string {
	if len(expiry) != 8 || !allDigits(expiry) {
		return expiry
	}
	t, err := time.Parse("20060102", expiry)
	if err != nil {
		return expiry
	}
	return t.Format("01/02/2006")
}
