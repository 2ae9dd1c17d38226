package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"trade-ledger/internal/broker/brokerobs"
	"trade-ledger/internal/broker/ibkr"
	"trade-ledger/internal/broker/mock"
	"trade-ledger/internal/broker/zerodha"
	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/logger"
	"trade-ledger/internal/metrics"
	"trade-ledger/internal/report"
	"trade-ledger/internal/report/reportobs"
	"trade-ledger/internal/store"
	"trade-ledger/internal/trace"
	"trade-ledger/internal/types"
)

// initializeSystem loads .env and starts the logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(ctx context.Context, f flags) (*store.Config, error) {
	cfg, err := store.LoadConfig(f.configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", f.configPath)
		return nil, err
	}

	if f.source != "" {
		cfg.Source = strings.ToUpper(f.source)
	}
	if f.formats != "" {
		cfg.Report.Formats = splitFormats(f.formats)
	}
	if f.outputDir != "" {
		cfg.Report.OutputDir = f.outputDir
	}
	if f.noConsolidate {
		off := false
		cfg.Engine.Consolidate = &off
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// initializeSource builds the configured execution source with observability.
func initializeSource(ctx context.Context, cfg *store.Config) interfaces.ExecutionSource {
	var src interfaces.ExecutionSource

	switch cfg.Source {
	case store.SourceKite:
		src = zerodha.New(zerodha.Params{
			APIKey:      cfg.Kite.APIKey,
			AccessToken: cfg.Kite.AccessToken,
		})
	case store.SourceMock:
		logger.Warn(ctx, "Using MOCK executions - no broker is contacted")
		src = mock.New()
	default:
		if cfg.IBKR.AccountID == "" {
			logger.Warn(ctx, "IBKR_ACCOUNT_ID is not set - account summary lookups will fail")
		}
		src = ibkr.NewClient(ibkr.Params{
			BaseURL:            cfg.IBKR.BaseURL,
			AccountID:          cfg.IBKR.AccountID,
			TradesPath:         cfg.IBKR.TradesPath,
			SummaryPath:        cfg.IBKR.SummaryPath,
			InsecureSkipVerify: cfg.IBKR.InsecureSkipVerify,
			Timeout:            time.Duration(cfg.IBKR.TimeoutSeconds) * time.Second,
			Retries:            cfg.IBKR.Retries,
		})
	}

	logger.Info(ctx, "Execution source ready", "source", src.Name())
	return brokerobs.Wrap(src)
}

// accountInputs resolves net liquidation and the risk unit. A configured
// override wins; a failed lookup degrades to zero so account % reads 0.
func accountInputs(ctx context.Context, cfg *store.Config, src interfaces.ExecutionSource, m *metrics.Metrics) types.AccountInputs {
	acct := types.AccountInputs{RiskUnit: cfg.RiskUnit(), NetLiquidation: decimal.Zero}

	if cfg.Risk.NetLiqOverride > 0 {
		acct.NetLiquidation = decimal.NewFromFloat(cfg.Risk.NetLiqOverride)
		logger.Info(ctx, "Using configured net liquidation", "net_liquidation", acct.NetLiquidation.String())
		return acct
	}

	nl, err := src.NetLiquidation(ctx)
	if err != nil {
		m.ObserveSourceError(src.Name())
		logger.Warn(ctx, "Net liquidation unavailable - account % will be 0", "error", err)
		return acct
	}
	acct.NetLiquidation = nl
	return acct
}

// initializeReporter opens one writer per configured format, each wrapped
// with observability. Every write outcome is counted in m.
func initializeReporter(cfg *store.Config, run report.Run, m *metrics.Metrics) (*report.Reporter, error) {
	return report.NewReporter(report.Options{
		OutputDir:  cfg.Report.OutputDir,
		Formats:    cfg.Report.Formats,
		SQLitePath: cfg.Report.SQLitePath,
		Run:        run,
		Observe:    m.ObserveWrite,
	}, reportobs.Wrap)
}

func splitFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
