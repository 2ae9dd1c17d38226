package engine

import (
	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/store"
)

// New builds a reconciler from the engine section of the config.
func New(cfg *store.Config) interfaces.Reconciler {
	return newEngine(Options{
		Workers:             cfg.Engine.Workers,
		Consolidate:         cfg.Consolidate(),
		AnnotationSeparator: cfg.Report.AnnotationSeparator,
	})
}

func NewWithOptions(opts Options) interfaces.Reconciler {
	return newEngine(opts)
}
