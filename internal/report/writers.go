package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/types"
)

const (
	FormatCSV    = "csv"
	FormatXLSX   = "xlsx"
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

// Run identifies one reconciliation run in file names and database rows.
type Run struct {
	ID     string
	Source string
	At     time.Time
}

func (r Run) stamp() string {
	return r.At.UTC().Format("20060102-150405")
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// csvWriter writes the closed-trade log and a sibling open-positions file.
type csvWriter struct {
	dir string
	run Run
}

var _ interfaces.ReportWriter = (*csvWriter)(nil)

func (w *csvWriter) Format() string { return FormatCSV }

func (w *csvWriter) Write(ctx context.Context, ledger *types.Ledger) (string, error) {
	if err := ensureDir(w.dir); err != nil {
		return "", err
	}
	sheet := Assemble(ledger)

	tradesPath := filepath.Join(w.dir, fmt.Sprintf("trade_log_%s.csv", w.run.stamp()))
	if err := writeCSV(tradesPath, &sheet.Trades); err != nil {
		return "", fmt.Errorf("failed to write trade log: %w", err)
	}
	openPath := filepath.Join(w.dir, fmt.Sprintf("open_positions_%s.csv", w.run.stamp()))
	if err := writeCSV(openPath, &sheet.OpenPositions); err != nil {
		return "", fmt.Errorf("failed to write open positions: %w", err)
	}
	return tradesPath, nil
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(rows, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// xlsxWriter puts trades and open positions on two sheets of one workbook.
type xlsxWriter struct {
	dir string
	run Run
}

var _ interfaces.ReportWriter = (*xlsxWriter)(nil)

func (w *xlsxWriter) Format() string { return FormatXLSX }

func (w *xlsxWriter) Write(ctx context.Context, ledger *types.Ledger) (string, error) {
	if err := ensureDir(w.dir); err != nil {
		return "", err
	}
	sheet := Assemble(ledger)

	f := excelize.NewFile()
	defer f.Close()

	const tradesSheet, openSheet = "Trades", "Open Positions"
	if err := f.SetSheetName("Sheet1", tradesSheet); err != nil {
		return "", err
	}
	if _, err := f.NewSheet(openSheet); err != nil {
		return "", err
	}

	tradeRows := make([][]string, 0, len(sheet.Trades))
	for _, r := range sheet.Trades {
		tradeRows = append(tradeRows, r.values())
	}
	if err := fillSheet(f, tradesSheet, tradeHeaders, tradeRows); err != nil {
		return "", err
	}
	openRows := make([][]string, 0, len(sheet.OpenPositions))
	for _, r := range sheet.OpenPositions {
		openRows = append(openRows, r.values())
	}
	if err := fillSheet(f, openSheet, openHeaders, openRows); err != nil {
		return "", err
	}

	path := filepath.Join(w.dir, fmt.Sprintf("trade_log_%s.xlsx", w.run.stamp()))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

func fillSheet(f *excelize.File, sheet string, headers []string, rows [][]string) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}

// jsonWriter dumps the rendered sheet plus run metadata.
type jsonWriter struct {
	dir string
	run Run
}

var _ interfaces.ReportWriter = (*jsonWriter)(nil)

func (w *jsonWriter) Format() string { return FormatJSON }

func (w *jsonWriter) Write(ctx context.Context, ledger *types.Ledger) (string, error) {
	if err := ensureDir(w.dir); err != nil {
		return "", err
	}
	doc := struct {
		RunID  string    `json:"run_id"`
		Source string    `json:"source"`
		At     time.Time `json:"generated_at"`
		Sheet
	}{w.run.ID, w.run.Source, w.run.At.UTC(), Assemble(ledger)}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("trade_log_%s.json", w.run.stamp()))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
