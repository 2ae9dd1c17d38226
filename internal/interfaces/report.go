package interfaces

import (
	"context"

	"trade-ledger/internal/types"
)

// ReportWriter serializes a finished ledger into one output format and
// returns the path it wrote.
type ReportWriter interface {
	Format() string
	Write(ctx context.Context, ledger *types.Ledger) (path string, err error)
}
