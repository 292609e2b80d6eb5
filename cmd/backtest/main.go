// Command backtest runs a historical simulation over a CSV candle file and
// prints the results as a table.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"crypto-signal-engine/internal/backtest"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
	sig "crypto-signal-engine/internal/signal"
)

// csvCandle is the CSV row shape: unix-second timestamps and OHLCV columns.
type csvCandle struct {
	Timestamp int64   `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

var (
	csvPath       string
	pair          string
	balance       float64
	sizing        string
	sizingValue   float64
	slippagePct   float64
	commissionPct float64
	timeStopHours float64
	minConfidence float64
	jsonOut       string
	showTrades    bool
)

func main() {
	godotenv.Load()

	root := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the signal strategy over historical candles",
		RunE:  run,
	}

	root.Flags().StringVar(&csvPath, "csv", "", "path to OHLCV csv file (required)")
	root.Flags().StringVar(&pair, "pair", "BTCUSDT", "trading pair label")
	root.Flags().Float64Var(&balance, "balance", 10000, "initial balance")
	root.Flags().StringVar(&sizing, "sizing", "PERCENTAGE", "position sizing: FIXED, PERCENTAGE, or KELLY")
	root.Flags().Float64Var(&sizingValue, "sizing-value", 2.0, "dollars for FIXED, percent otherwise")
	root.Flags().Float64Var(&slippagePct, "slippage", 0.05, "slippage percent per side")
	root.Flags().Float64Var(&commissionPct, "commission", 0.04, "commission percent per side")
	root.Flags().Float64Var(&timeStopHours, "time-stop", 48, "maximum holding time in hours")
	root.Flags().Float64Var(&minConfidence, "min-confidence", 0.55, "minimum signal confidence to trade")
	root.Flags().StringVar(&jsonOut, "json-out", "", "write full results to this JSON file")
	root.Flags().BoolVar(&showTrades, "trades", false, "print the individual trades")
	root.MarkFlagRequired("csv")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logging.New(&logging.Config{
		Level:  getEnv("LOG_LEVEL", "WARN"),
		Output: "stderr",
	})
	logging.SetDefault(log)

	candles, err := loadCandles(csvPath)
	if err != nil {
		return err
	}

	cfg := backtest.DefaultConfig(pair)
	cfg.InitialBalance = balance
	cfg.Sizing = backtest.PositionSizing(sizing)
	cfg.SizingValue = sizingValue
	cfg.SlippagePct = slippagePct
	cfg.CommissionPct = commissionPct
	cfg.TimeStopHours = timeStopHours
	cfg.MinConfidence = minConfidence

	composer := sig.NewComposer(sig.DefaultComposerConfig())
	engine, err := backtest.NewEngine(cfg, composer, log)
	if err != nil {
		return err
	}

	engine.SetProgressFunc(func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rprocessed %d/%d bars", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := engine.Run(ctx, candles)
	if err != nil {
		return err
	}

	printSummary(results)
	printMonthly(results)
	if showTrades {
		printTrades(results)
	}

	if jsonOut != "" {
		if err := writeJSON(jsonOut, results); err != nil {
			return err
		}
		fmt.Printf("\nfull results written to %s\n", jsonOut)
	}
	return nil
}

func loadCandles(path string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rows []*csvCandle
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	candles := make([]market.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, market.Candle{
			Timestamp: time.Unix(r.Timestamp, 0).UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}

	if err := market.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("invalid candle data: %w", err)
	}
	return candles, nil
}

func printSummary(r *backtest.Results) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(false)

	table.Append([]string{"Pair", r.Config.Pair})
	table.Append([]string{"Period", fmt.Sprintf("%s - %s",
		r.StartTime.Format("2006-01-02"), r.EndTime.Format("2006-01-02"))})
	table.Append([]string{"Initial Balance", fmt.Sprintf("%.2f", r.Config.InitialBalance)})
	table.Append([]string{"Final Balance", fmt.Sprintf("%.2f", r.FinalBalance)})
	table.Append([]string{"Total Return", fmt.Sprintf("%.2f%%", r.TotalReturnPct)})
	table.Append([]string{"Trades", fmt.Sprintf("%d", r.TotalTrades)})
	table.Append([]string{"Win Rate", fmt.Sprintf("%.1f%%", r.WinRate)})
	table.Append([]string{"Profit Factor", fmt.Sprintf("%.2f", r.ProfitFactor)})
	table.Append([]string{"Sharpe Ratio", fmt.Sprintf("%.2f", r.SharpeRatio)})
	table.Append([]string{"Max Drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdownPct)})
	table.Append([]string{"Avg Win / Avg Loss", fmt.Sprintf("%.2f / %.2f", r.AvgWin, r.AvgLoss)})
	table.Append([]string{"Best Streak (W/L)", fmt.Sprintf("%d / %d", r.MaxWinStreak, r.MaxLossStreak)})
	table.Append([]string{"Total Fees", fmt.Sprintf("%.2f", r.TotalFees)})

	fmt.Println()
	table.Render()
}

func printMonthly(r *backtest.Results) {
	if len(r.MonthlyReturns) == 0 {
		return
	}

	months := make([]string, 0, len(r.MonthlyReturns))
	for m := range r.MonthlyReturns {
		months = append(months, m)
	}
	sort.Strings(months)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Month", "PnL"})
	table.SetBorder(false)
	for _, m := range months {
		table.Append([]string{m, fmt.Sprintf("%.2f", r.MonthlyReturns[m])})
	}

	fmt.Println()
	table.Render()
}

func printTrades(r *backtest.Results) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Entry", "Exit", "Dir", "Entry Px", "Exit Px", "Reason", "PnL"})
	table.SetBorder(false)

	for _, t := range r.Trades {
		table.Append([]string{
			t.EntryTime.Format("01-02 15:04"),
			t.ExitTime.Format("01-02 15:04"),
			string(t.Direction),
			fmt.Sprintf("%.4f", t.EntryPrice),
			fmt.Sprintf("%.4f", t.ExitPrice),
			string(t.CloseReason),
			fmt.Sprintf("%.2f", t.PnL),
		})
	}

	fmt.Println()
	table.Render()
}

func writeJSON(path string, r *backtest.Results) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
