package interfaces

import (
	"context"

	"trade-ledger/internal/types"
)

// Reconciler turns one raw execution batch into a ledger. It never fails:
// bad records surface as warnings inside the ledger.
type Reconciler interface {
	Reconcile(ctx context.Context, raws []types.RawExecution, acct types.AccountInputs) *types.Ledger
}
