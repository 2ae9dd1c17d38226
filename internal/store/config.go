package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	SourceIBKR = "IBKR"
	SourceKite = "KITE"
	SourceMock = "MOCK"
)

type Config struct {
	Source string `yaml:"source"`
	IBKR   struct {
		BaseURL            string `yaml:"base_url"`
		TradesPath         string `yaml:"trades_path"`
		SummaryPath        string `yaml:"summary_path"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
		TimeoutSeconds     int    `yaml:"timeout_seconds"`
		Retries            int    `yaml:"retries"`
		// AccountID comes from IBKR_ACCOUNT_ID, never from the file.
		AccountID string `yaml:"-"`
	} `yaml:"ibkr"`
	Kite struct {
		APIKey      string `yaml:"-"`
		AccessToken string `yaml:"-"`
	} `yaml:"-"`
	Risk struct {
		RiskUnit float64 `yaml:"risk_unit"`
		// NetLiqOverride replaces the fetched net liquidation when > 0.
		NetLiqOverride float64 `yaml:"net_liq_override"`
	} `yaml:"risk"`
	Engine struct {
		Workers     int   `yaml:"workers"`
		Consolidate *bool `yaml:"consolidate"`
	} `yaml:"engine"`
	Report struct {
		OutputDir           string   `yaml:"output_dir"`
		Formats             []string `yaml:"formats"`
		AnnotationSeparator string   `yaml:"annotation_separator"`
		SQLitePath          string   `yaml:"sqlite_path"`
	} `yaml:"report"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
	RunLog struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"runlog"`
	Probe struct {
		Hosts     []string `yaml:"hosts"`
		Ports     []int    `yaml:"ports"`
		PortRange [2]int   `yaml:"port_range"`
		TimeoutMS int      `yaml:"timeout_ms"`
	} `yaml:"probe"`
}

var validFormats = map[string]bool{"csv": true, "xlsx": true, "json": true, "sqlite": true}

func (c *Config) Validate() error {
	switch c.Source {
	case SourceIBKR, SourceKite, SourceMock:
	default:
		return fmt.Errorf("invalid source '%s': must be 'IBKR', 'KITE' or 'MOCK'", c.Source)
	}
	if c.Source == SourceIBKR && c.IBKR.BaseURL == "" {
		return errors.New("ibkr.base_url cannot be empty")
	}
	if c.Risk.RiskUnit <= 0 {
		return fmt.Errorf("risk.risk_unit must be positive, got %.2f", c.Risk.RiskUnit)
	}
	if c.IBKR.Retries < 0 {
		return fmt.Errorf("ibkr.retries cannot be negative, got %d", c.IBKR.Retries)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers cannot be negative, got %d", c.Engine.Workers)
	}
	if len(c.Report.Formats) == 0 {
		return errors.New("report.formats cannot be empty")
	}
	for _, f := range c.Report.Formats {
		if !validFormats[f] {
			return fmt.Errorf("report.formats: unknown format '%s'", f)
		}
	}
	if lo, hi := c.Probe.PortRange[0], c.Probe.PortRange[1]; lo < 1 || hi > 65535 || lo > hi {
		return fmt.Errorf("probe.port_range must be within 1-65535 and ascending, got %d-%d", lo, hi)
	}
	return nil
}

// RiskUnit is the fixed nominal amount one trade is measured against.
func (c *Config) RiskUnit() decimal.Decimal {
	return decimal.NewFromFloat(c.Risk.RiskUnit)
}

func (c *Config) Consolidate() bool {
	return c.Engine.Consolidate == nil || *c.Engine.Consolidate
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig applies defaults and environment secrets on top of raw YAML
// and validates the result.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.Source = strings.ToUpper(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = SourceIBKR
	}
	if c.IBKR.BaseURL == "" {
		c.IBKR.BaseURL = "https://localhost:5000/v1/api"
	}
	if c.IBKR.TradesPath == "" {
		c.IBKR.TradesPath = "/iserver/account/trades"
	}
	if c.IBKR.SummaryPath == "" {
		c.IBKR.SummaryPath = "/portfolio/{account}/summary"
	}
	if c.IBKR.TimeoutSeconds == 0 {
		c.IBKR.TimeoutSeconds = 10
	}
	if c.Risk.RiskUnit == 0 {
		c.Risk.RiskUnit = 1000
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "reports"
	}
	if len(c.Report.Formats) == 0 {
		c.Report.Formats = []string{"csv"}
	}
	for i, f := range c.Report.Formats {
		c.Report.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	if c.Report.AnnotationSeparator == "" {
		c.Report.AnnotationSeparator = "; "
	}
	if c.Report.SQLitePath == "" {
		c.Report.SQLitePath = "trade_ledger.db"
	}
	if c.RunLog.Dir == "" {
		c.RunLog.Dir = "logs/runs"
	}
	if c.RunLog.RetentionDays == 0 {
		c.RunLog.RetentionDays = 7
	}
	if len(c.Probe.Hosts) == 0 {
		c.Probe.Hosts = []string{"localhost", "127.0.0.1"}
	}
	if len(c.Probe.Ports) == 0 {
		c.Probe.Ports = []int{5000, 5001, 4000}
	}
	if c.Probe.PortRange == [2]int{} {
		c.Probe.PortRange = [2]int{3000, 6000}
	}
	if c.Probe.TimeoutMS == 0 {
		c.Probe.TimeoutMS = 500
	}

	c.IBKR.AccountID = os.Getenv("IBKR_ACCOUNT_ID")
	c.Kite.APIKey = os.Getenv("KITE_API_KEY")
	c.Kite.AccessToken = os.Getenv("KITE_ACCESS_TOKEN")

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
