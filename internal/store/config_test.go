package store

import (
	"strings"
	"testing"
)

func TestParseConfig_Defaults(t *testing.T) {
	t.Setenv("IBKR_ACCOUNT_ID", "U1234567")
	cfg, err := ParseConfig([]byte("source: ibkr\n"))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.Source != SourceIBKR {
		t.Errorf("Expected source IBKR, got %s", cfg.Source)
	}
	if cfg.IBKR.AccountID != "U1234567" {
		t.Errorf("Expected account from env, got %q", cfg.IBKR.AccountID)
	}
	if got := cfg.RiskUnit().String(); got != "1000" {
		t.Errorf("Expected risk unit 1000, got %s", got)
	}
	if !cfg.Consolidate() {
		t.Error("Expected consolidation on by default")
	}
	if len(cfg.Report.Formats) != 1 || cfg.Report.Formats[0] != "csv" {
		t.Errorf("Expected formats [csv], got %v", cfg.Report.Formats)
	}
	if cfg.Report.AnnotationSeparator != "; " {
		t.Errorf("Expected separator '; ', got %q", cfg.Report.AnnotationSeparator)
	}
	if cfg.Probe.PortRange != [2]int{3000, 6000} {
		t.Errorf("Expected port range 3000-6000, got %v", cfg.Probe.PortRange)
	}
}

func TestParseConfig_Overrides(t *testing.T) {
	raw := `
source: MOCK
risk:
  risk_unit: 500
engine:
  workers: 2
  consolidate: false
report:
  formats: [" CSV ", xlsx, sqlite]
`
	cfg, err := ParseConfig([]byte(raw))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Consolidate() {
		t.Error("Expected consolidation off")
	}
	if got := cfg.RiskUnit().String(); got != "500" {
		t.Errorf("Expected risk unit 500, got %s", got)
	}
	if strings.Join(cfg.Report.Formats, ",") != "csv,xlsx,sqlite" {
		t.Errorf("Expected normalized formats, got %v", cfg.Report.Formats)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"unknown source", "source: SCHWAB\n", "invalid source"},
		{"negative risk unit", "risk:\n  risk_unit: -5\n", "risk_unit"},
		{"negative workers", "engine:\n  workers: -1\n", "workers"},
		{"unknown format", "report:\n  formats: [pdf]\n", "unknown format"},
		{"bad port range", "probe:\n  port_range: [6000, 3000]\n", "port_range"},
		{"negative retries", "ibkr:\n  retries: -1\n", "retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.raw))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
