package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/types"
)

var (
	hundred = decimal.NewFromInt(100)

	errEmptyValue = errors.New("empty value")
)

// lookup returns the first present, non-empty value among names. The second
// result is the key that matched.
func lookup(raw types.RawExecution, names []string) (any, string, bool) {
	for _, name := range names {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, name, true
	}
	return nil, "", false
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint32:
		return decimal.NewFromInt(int64(n)), nil
	case uint64:
		return decimal.NewFromInt(int64(n)), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return decimal.Zero, errEmptyValue
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case fmt.Stringer:
		return s.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

var (
	compactDateLayouts = []string{
		"20060102-15:04:05",
		"20060102 15:04:05",
		"20060102;150405",
		"20060102",
	}
	isoLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04",
		"20060102T150405Z0700",
		"20060102T150405",
		"2006-01-02",
	}
)

// parseTradeTime tries an 8-digit date, then ISO-8601, then epoch
// milliseconds. The first layout that parses wins.
func parseTradeTime(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t.UTC(), !t.IsZero()
	}
	s := toString(v)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) >= 8 && allDigits(s[:8]) {
		for _, layout := range compactDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Time{}, false
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// share pro-rates amount by part/whole. A full fill takes the whole amount so
// no division residue is introduced.
func share(amount, part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() || part.Equal(whole) {
		return amount
	}
	return amount.Mul(part).Div(whole)
}

func wholeDays(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
