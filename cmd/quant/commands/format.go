package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/b3factor/backend/internal/brain"
	"github.com/wonny/b3factor/backend/internal/report"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// every command prints through these helpers
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a command header with the run id
func PrintHeader(title, runID string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	if runID != "" {
		fmt.Printf("  Run ID    : %s\n", runID)
	}
	fmt.Printf("  Started   : %s\n", time.Now().Format(time.RFC3339))
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	total := 0
	for i, width := range widths {
		total += width
		if i < len(widths)-1 {
			total += 2
		}
	}
	fmt.Println(strings.Repeat("─", total))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintRunResult prints the stage table and outputs of a pipeline run
func PrintRunResult(result *brain.RunResult) {
	if result == nil {
		return
	}

	fmt.Println()
	widths := []int{6, 26, 10, 10, 10}
	PrintTableHeader([]string{"Stage", "Description", "Input", "Output", "Time"}, widths)
	for _, r := range result.Summary.Results {
		status := fmt.Sprintf("%dms", r.Duration)
		if !r.Success {
			status = "FAILED"
		}
		PrintTableRow([]string{
			r.Stage.ShortName(),
			r.Stage.Description(),
			fmt.Sprintf("%d", r.InputCount),
			fmt.Sprintf("%d", r.OutputCount),
			status,
		}, widths)
	}
	fmt.Println()

	if q := result.QualitySnapshot; q != nil {
		PrintKeyValue("Quality", fmt.Sprintf("%.2f (%d/%d tickers)", q.QualityScore, q.ValidTickers, q.TotalTickers), 12)
	}
	PrintKeyValue("Indicators", fmt.Sprintf("%d", len(result.Indicators)), 12)
	PrintKeyValue("Premiums", fmt.Sprintf("%d", len(result.Premiums)), 12)
	if result.Report != nil {
		PrintKeyValue("Backtest", fmt.Sprintf("%d windows, %d failed tickers", len(result.Report.Rows), len(result.Report.Failed)), 12)
		PrintKeyValue("Report", result.ReportDir, 12)
	}
	PrintKeyValue("Duration", result.Duration.Round(time.Millisecond).String(), 12)
}

// PrintBacktestSummary prints per-ticker scores of a report
func PrintBacktestSummary(summaries []report.TickerSummary) {
	widths := []int{8, 8, 10, 10, 10}
	PrintTableHeader([]string{"Ticker", "Windows", "Accuracy", "MAE", "RMSE"}, widths)
	for _, s := range summaries {
		PrintTableRow([]string{
			s.Ticker,
			fmt.Sprintf("%d", s.Windows),
			fmt.Sprintf("%.3f", s.Accuracy),
			nullable(s.MAE.Valid, s.MAE.Float64),
			nullable(s.RMSE.Valid, s.RMSE.Float64),
		}, widths)
	}
}

func nullable(valid bool, v float64) string {
	if !valid {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}
