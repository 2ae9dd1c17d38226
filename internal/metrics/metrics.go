package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trade-ledger/internal/types"
)

const namespace = "trade_ledger"

// Metrics holds the gauges and counters of one ledger run. They live in a
// private registry and are exported as a node_exporter textfile, since the
// command exits after a single run.
type Metrics struct {
	registry *prometheus.Registry

	RawRecords    prometheus.Gauge
	Admitted      prometheus.Gauge
	Dropped       prometheus.Gauge
	Instruments   prometheus.Gauge
	MatchedTrades prometheus.Gauge
	OpenLots      prometheus.Gauge
	GrossPnL      prometheus.Gauge
	NetPnL        prometheus.Gauge
	Commission    prometheus.Gauge
	RunDuration   prometheus.Gauge
	LastRun       prometheus.Gauge

	Warnings     *prometheus.GaugeVec   // labels: kind
	ReportWrites *prometheus.CounterVec // labels: format, status
	SourceErrors *prometheus.CounterVec // labels: source
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// New registers and returns all run metrics.
func New() *Metrics {
	m := &Metrics{
		registry:      prometheus.NewRegistry(),
		RawRecords:    gauge("raw_records", "Execution records received from the source"),
		Admitted:      gauge("admitted_records", "Execution records admitted after normalization"),
		Dropped:       gauge("dropped_records", "Execution records excluded during normalization"),
		Instruments:   gauge("instruments", "Distinct instrument keys in the batch"),
		MatchedTrades: gauge("matched_trades", "Buy/sell lot pairings produced by FIFO matching"),
		OpenLots:      gauge("open_lots", "Unmatched residual lots left open"),
		GrossPnL:      gauge("gross_pnl", "Sum of gross realized P&L"),
		NetPnL:        gauge("net_pnl", "Sum of net realized P&L"),
		Commission:    gauge("commission", "Sum of commissions on matched trades"),
		RunDuration:   gauge("run_duration_seconds", "Wall time of the last run"),
		LastRun:       gauge("last_run_timestamp_seconds", "Unix time the last run finished"),
		Warnings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warnings",
			Help:      "Warnings raised in the last run by kind",
		}, []string{"kind"}),
		ReportWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_writes_total",
			Help:      "Report writes by format and outcome",
		}, []string{"format", "status"}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Failed calls to the execution source",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.RawRecords, m.Admitted, m.Dropped, m.Instruments,
		m.MatchedTrades, m.OpenLots, m.GrossPnL, m.NetPnL, m.Commission,
		m.RunDuration, m.LastRun,
		m.Warnings, m.ReportWrites, m.SourceErrors,
	)
	return m
}

// ObserveLedger records the outcome of one reconciliation.
func (m *Metrics) ObserveLedger(l *types.Ledger, took time.Duration, now time.Time) {
	s := l.Stats
	m.RawRecords.Set(float64(s.RawRecords))
	m.Admitted.Set(float64(s.Admitted))
	m.Dropped.Set(float64(s.Dropped))
	m.Instruments.Set(float64(s.Instruments))
	m.MatchedTrades.Set(float64(s.MatchedTrades))
	m.OpenLots.Set(float64(s.OpenLots))
	m.GrossPnL.Set(s.GrossPnL.InexactFloat64())
	m.NetPnL.Set(s.NetPnL.InexactFloat64())
	m.Commission.Set(s.Commission.InexactFloat64())
	m.RunDuration.Set(took.Seconds())
	m.LastRun.Set(float64(now.Unix()))

	counts := map[types.WarningKind]int{}
	for _, w := range l.Warnings {
		counts[w.Kind]++
	}
	for _, kind := range []types.WarningKind{
		types.WarnFieldDefaulted, types.WarnTimeDefaulted,
		types.WarnRecordDropped, types.WarnAggregateSkipped,
	} {
		m.Warnings.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}

func (m *Metrics) ObserveWrite(format string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ReportWrites.WithLabelValues(format, status).Inc()
}

func (m *Metrics) ObserveSourceError(source string) {
	m.SourceErrors.WithLabelValues(source).Inc()
}

// WriteTextfile atomically writes every metric in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
