package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// Published file names inside a run directory
const (
	CSVFile  = "backtest.csv"
	JSONFile = "backtest.json"
	XLSXFile = "backtest.xlsx"
)

// Sheet names of the workbook
const (
	SheetRows    = "windows"
	SheetSummary = "summary"
	SheetFailed  = "failed"
)

// Publisher writes backtest reports as CSV, JSON and XLSX under
// <dir>/<run id>/
type Publisher struct {
	dir    string
	logger *logger.Logger
}

// NewPublisher creates a new Publisher
func NewPublisher(dir string, log *logger.Logger) *Publisher {
	return &Publisher{dir: dir, logger: log.WithComponent("report")}
}

// Publish writes every format and returns the run directory
func (p *Publisher) Publish(r contracts.BacktestReport) (string, error) {
	if r.RunID == "" {
		return "", fmt.Errorf("publish report: missing run id")
	}
	dir := filepath.Join(p.dir, r.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}

	if err := WriteCSV(filepath.Join(dir, CSVFile), r); err != nil {
		return "", err
	}
	if err := WriteJSON(filepath.Join(dir, JSONFile), r); err != nil {
		return "", err
	}
	if err := WriteXLSX(filepath.Join(dir, XLSXFile), r); err != nil {
		return "", err
	}

	p.logger.WithFields(map[string]interface{}{
		"run_id": r.RunID,
		"rows":   len(r.Rows),
		"dir":    dir,
	}).Info("Backtest report published")

	return dir, nil
}

// csvRow is one CSV line. Null metrics are empty cells.
type csvRow struct {
	Ticker        string  `csv:"ticker"`
	TestStart     string  `csv:"test_window_start"`
	TestEnd       string  `csv:"test_window_end"`
	Accuracy      float64 `csv:"classification_accuracy"`
	MAE           string  `csv:"mae"`
	RMSE          string  `csv:"rmse"`
	TrainAccuracy float64 `csv:"train_accuracy"`
	Samples       int     `csv:"samples"`
}

// WriteCSV writes the window rows to path
func WriteCSV(path string, r contracts.BacktestReport) (err error) {
	rows := make([]*csvRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, &csvRow{
			Ticker:        row.Ticker,
			TestStart:     contracts.FormatDate(row.TestStart),
			TestEnd:       contracts.FormatDate(row.TestEnd),
			Accuracy:      row.Accuracy,
			MAE:           cell(row.MAE),
			RMSE:          cell(row.RMSE),
			TrainAccuracy: row.TrainAccuracy,
			Samples:       row.Samples,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes the whole report, summary included, to path
func WriteJSON(path string, r contracts.BacktestReport) error {
	doc := struct {
		contracts.BacktestReport
		Summary []TickerSummary `json:"summary"`
	}{r, Summarize(r)}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteXLSX writes a workbook with the window rows, the per-ticker summary
// and the failed tickers
func WriteXLSX(path string, r contracts.BacktestReport) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), SheetRows)
	if err := setRows(f, SheetRows,
		[]interface{}{"ticker", "test_window_start", "test_window_end", "classification_accuracy", "mae", "rmse", "train_accuracy", "samples"},
		len(r.Rows), func(i int) []interface{} {
			row := r.Rows[i]
			return []interface{}{
				row.Ticker, contracts.FormatDate(row.TestStart), contracts.FormatDate(row.TestEnd),
				row.Accuracy, nullable(row.MAE), nullable(row.RMSE), row.TrainAccuracy, row.Samples,
			}
		}); err != nil {
		return err
	}

	summary := Summarize(r)
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetSummary, err)
	}
	if err := setRows(f, SheetSummary,
		[]interface{}{"ticker", "windows", "samples", "classification_accuracy", "mae", "rmse", "train_accuracy"},
		len(summary), func(i int) []interface{} {
			s := summary[i]
			return []interface{}{s.Ticker, s.Windows, s.Samples, s.Accuracy, nullable(s.MAE), nullable(s.RMSE), s.TrainAccuracy}
		}); err != nil {
		return err
	}

	if len(r.Failed) > 0 {
		if _, err := f.NewSheet(SheetFailed); err != nil {
			return fmt.Errorf("create sheet %s: %w", SheetFailed, err)
		}
		if err := setRows(f, SheetFailed, []interface{}{"ticker"}, len(r.Failed), func(i int) []interface{} {
			return []interface{}{r.Failed[i]}
		}); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, header []interface{}, n int, row func(i int) []interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i := 0; i < n; i++ {
		values := row(i)
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
