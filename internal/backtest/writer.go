package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Writer handles writing backtest artifacts to disk
type Writer struct {
	outputDir string
}

// ArtifactPaths represents file paths for generated artifacts
type ArtifactPaths struct {
	TradesJSONL string `json:"trades_jsonl"`
	ReportMD    string `json:"report_md"`
	OutputDir   string `json:"output_dir"`
}

// NewWriter creates an artifact writer rooted at outputDir
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// PathsFor returns where artifacts of the given result are written
func (w *Writer) PathsFor(result *Result) ArtifactPaths {
	dir := filepath.Join(w.outputDir, fmt.Sprintf("%s_%s", result.Config.Symbol, result.StartedAt.Format("20060102T150405")))
	return ArtifactPaths{
		TradesJSONL: filepath.Join(dir, "trades.jsonl"),
		ReportMD:    filepath.Join(dir, "report.md"),
		OutputDir:   dir,
	}
}

// Write writes trades as JSONL (summary as the final line) and a markdown report
func (w *Writer) Write(result *Result) (ArtifactPaths, error) {
	paths := w.PathsFor(result)
	if err := os.MkdirAll(paths.OutputDir, 0755); err != nil {
		return paths, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := w.writeTrades(paths.TradesJSONL, result); err != nil {
		return paths, err
	}
	if err := os.WriteFile(paths.ReportMD, []byte(GenerateReport(result)), 0644); err != nil {
		return paths, fmt.Errorf("failed to write report: %w", err)
	}
	return paths, nil
}

func (w *Writer) writeTrades(path string, result *Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trades file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for i := range result.Trades {
		if err := enc.Encode(result.Trades[i]); err != nil {
			return fmt.Errorf("failed to write trade %d: %w", i, err)
		}
	}

	summary := struct {
		RunID   string  `json:"run_id"`
		Symbol  string  `json:"symbol"`
		Bars    int     `json:"bars"`
		Metrics Metrics `json:"metrics"`
	}{result.RunID, result.Config.Symbol, result.Bars, result.Metrics}
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// GenerateReport renders the markdown report for a run
func GenerateReport(result *Result) string {
	var report strings.Builder
	m := result.Metrics
	cfg := result.Config

	report.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", cfg.Symbol))
	report.WriteString(fmt.Sprintf("**Run**: %s\n", result.RunID))
	report.WriteString(fmt.Sprintf("**Period**: %s to %s (%d bars)\n",
		result.FirstBar.Format("2006-01-02"), result.LastBar.Format("2006-01-02"), result.Bars))
	report.WriteString(fmt.Sprintf("**Configuration**: strategies=%s, hold=%dd, target=%.1fR, stop=%.1fxATR, minScore=%.0f, minConf=%.2f, slippage=%.3f%%\n\n",
		strings.Join(cfg.Strategies, ","), cfg.DefaultHoldingDays, cfg.TargetRMultiple, cfg.StopATRMultiple,
		cfg.MinScore, cfg.MinConfidence, cfg.SlippagePct))

	report.WriteString("## Executive Summary\n\n")
	if m.TotalTrades == 0 {
		report.WriteString("No trades were taken.\n\n")
		return report.String()
	}
	report.WriteString(fmt.Sprintf("- **Trades**: %d (%d wins, %d losses)\n", m.TotalTrades, m.Wins, m.Losses))
	report.WriteString(fmt.Sprintf("- **Win Rate**: %.1f%%\n", m.WinRate*100))
	report.WriteString(fmt.Sprintf("- **Profit Factor**: %s\n", formatRatio(m.ProfitFactor)))
	report.WriteString(fmt.Sprintf("- **Total P&L**: $%.2f (%.2f%% of capital)\n", m.TotalPnl, m.TotalReturnPct))
	report.WriteString(fmt.Sprintf("- **Average R**: %.2f (wins %.2f, losses %.2f)\n", m.AvgR, m.AvgWinR, m.AvgLossR))
	report.WriteString(fmt.Sprintf("- **Max Drawdown**: %.2f%%\n", m.MaxDrawdownPct))
	report.WriteString(fmt.Sprintf("- **Max Consecutive Losses**: %d\n\n", m.MaxConsecutiveLosses))

	writeBreakdown(&report, "By Strategy", m.ByStrategy)
	writeBreakdown(&report, "By Year", m.ByYear)
	writeBreakdown(&report, "By Regime", m.ByRegime)

	report.WriteString("## Exit Reasons\n\n")
	report.WriteString("| Reason | Count |\n")
	report.WriteString("|--------|------:|\n")
	for _, reason := range []ExitReason{ExitStop, ExitTarget, ExitTime, ExitEndOfData} {
		if n := m.ExitReasons[reason]; n > 0 {
			report.WriteString(fmt.Sprintf("| %s | %d |\n", reason, n))
		}
	}
	report.WriteString("\n")

	return report.String()
}

func writeBreakdown(report *strings.Builder, title string, rows map[string]Breakdown) {
	if len(rows) == 0 {
		return
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	report.WriteString(fmt.Sprintf("## %s\n\n", title))
	report.WriteString("| Key | Trades | Win Rate | P&L | Avg R |\n")
	report.WriteString("|-----|-------:|---------:|----:|------:|\n")
	for _, k := range keys {
		b := rows[k]
		report.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %.2f | %.2f |\n", k, b.Trades, b.WinRate*100, b.TotalPnl, b.AvgR))
	}
	report.WriteString("\n")
}

func formatRatio(r Ratio) string {
	b, _ := r.MarshalJSON()
	return strings.Trim(string(b), `"`)
}
