package zerodha

import (
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// kiteAPI is the slice of the Kite Connect client the execution source uses.
type kiteAPI interface {
	GetTrades() (kiteconnect.Trades, error)
	GetUserMargins() (kiteconnect.AllMargins, error)
}
