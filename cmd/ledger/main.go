package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"trade-ledger/internal/engine"
	"trade-ledger/internal/engine/engineobs"
	"trade-ledger/internal/logger"
	"trade-ledger/internal/metrics"
	"trade-ledger/internal/report"
	"trade-ledger/internal/runlog"
	"trade-ledger/internal/trace"
)

type flags struct {
	configPath    string
	source        string
	formats       string
	outputDir     string
	noConsolidate bool
	printStats    bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "config.yaml", "path to config file")
	flag.StringVar(&f.source, "source", "", "execution source: IBKR, KITE or MOCK (overrides config)")
	flag.StringVar(&f.formats, "format", "", "comma-separated report formats: csv, xlsx, json, sqlite")
	flag.StringVar(&f.outputDir, "out", "", "report output directory (overrides config)")
	flag.BoolVar(&f.noConsolidate, "no-consolidate", false, "report one row per matched trade")
	flag.BoolVar(&f.printStats, "stats", false, "print run statistics as JSON to stdout")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, f)
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := trace.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shutdown tracer: %v\n", err)
	}
	_ = logger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, f flags) int {
	cfg, err := loadConfig(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	runID := uuid.NewString()
	started := time.Now()
	op := logger.StartOperation(ctx, "ledger.Run", "run_id", runID, "source", cfg.Source)
	ctx = op.GetContext()
	logger.Info(ctx, "Ledger run started", "run_id", runID, "source", cfg.Source)

	m := metrics.New()
	journal := runlog.New(cfg.RunLog.Dir)
	if err := journal.CompressOlder(cfg.RunLog.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old run logs", "error", err)
	}

	src := initializeSource(ctx, cfg)
	entry := runlog.Entry{RunID: runID, Source: src.Name()}

	raws, err := src.Executions(ctx)
	if err != nil {
		m.ObserveSourceError(src.Name())
		logger.ErrorWithErr(ctx, "Failed to fetch executions", err, "source", src.Name())
		entry.Error = err.Error()
		finish(ctx, cfg.Metrics.Textfile, journal, entry, m, started)
		op.EndWithError(err)
		return 1
	}

	acct := accountInputs(ctx, cfg, src, m)
	ledger := engineobs.Wrap(engine.New(cfg)).Reconcile(ctx, raws, acct)
	m.ObserveLedger(ledger, time.Since(started), time.Now())

	entry = runlog.FromLedger(runID, src.Name(), ledger)

	rep, err := initializeReporter(cfg, report.Run{ID: runID, Source: src.Name(), At: started}, m)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open report writers", err)
		entry.Error = err.Error()
		finish(ctx, cfg.Metrics.Textfile, journal, entry, m, started)
		op.EndWithError(err)
		return 1
	}
	paths, werr := rep.WriteAll(ctx, ledger)
	if err := rep.Close(); err != nil {
		logger.Warn(ctx, "Failed to close report writers", "error", err)
	}
	entry.Reports = paths
	for _, p := range paths {
		logger.Info(ctx, "Report written", "path", p)
	}

	if f.printStats {
		b, _ := json.MarshalIndent(ledger.Stats, "", "  ")
		fmt.Println(string(b))
	}

	if werr != nil {
		entry.Error = werr.Error()
	}
	finish(ctx, cfg.Metrics.Textfile, journal, entry, m, started)
	if werr != nil {
		op.EndWithError(werr, "reports", len(paths))
		return 1
	}
	op.End(
		"matched_trades", ledger.Stats.MatchedTrades,
		"open_lots", ledger.Stats.OpenLots,
		"reports", len(paths),
	)
	return 0
}

// finish records the run in the journal and the metrics textfile. Neither
// failure changes the exit code.
func finish(ctx context.Context, textfile string, journal *runlog.Journal, entry runlog.Entry, m *metrics.Metrics, started time.Time) {
	entry.DurationMS = time.Since(started).Milliseconds()
	if err := journal.Append(entry); err != nil {
		logger.Warn(ctx, "Failed to append run log", "error", err)
	}
	if textfile == "" {
		return
	}
	if err := m.WriteTextfile(textfile); err != nil {
		logger.Warn(ctx, "Failed to write metrics textfile", "path", textfile, "error", err)
	}
}
