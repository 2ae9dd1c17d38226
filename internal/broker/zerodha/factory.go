package zerodha

import (
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"trade-ledger/internal/interfaces"
)

func New(p Params) interfaces.ExecutionSource {
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newZerodha(p, kc)
}
