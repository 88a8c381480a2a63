package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"spx-orb-trader/internal/broker"
	"spx-orb-trader/internal/report"
	"spx-orb-trader/internal/strategy"
	"spx-orb-trader/internal/trading"
)

// addStatusCommands adds session and market inspection commands.
func addStatusCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newRangeCmd(app))
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session phase, day state and entry readiness",
		Example: `  orb-trader status
  orb-trader status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Session == nil {
				output.Error("Session not configured")
				return nil
			}

			now := time.Now().In(app.Session.Location())
			date := app.Session.DayOf(now)
			status := app.Session.StatusAt(now)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var dayState, dayReason string
			if app.Store != nil {
				if day, err := app.Store.GetDay(ctx, date); err == nil && day != nil {
					dayState = string(day.State)
					dayReason = day.Reason
				}
			}

			if output.IsJSON() {
				payload := map[string]interface{}{
					"date":          date.Format("2006-01-02"),
					"phase":         string(status.Phase),
					"description":   status.Description,
					"mode":          app.Config.Trading.Mode,
					"dry_run":       app.Config.Trading.DryRun,
					"orders_live":   app.Config.OrdersAreLive(),
					"authenticated": app.Broker.IsAuthenticated(),
				}
				if dayState != "" {
					payload["day_state"] = dayState
				}
				return output.JSON(payload)
			}

			output.Println()
			output.Printf("%s  %s\n", output.SessionBadge(status.Phase), now.Format("Mon 02 Jan 2006 15:04:05 MST"))
			if status.Description != "" {
				output.Dim("  %s", status.Description)
			}
			output.Println()

			output.Bold("Trading")
			output.Printf("  Mode:        %s\n", app.Config.Trading.Mode)
			if app.Config.OrdersAreLive() {
				output.Printf("  Orders:      %s\n", output.Red("LIVE"))
			} else {
				output.Printf("  Orders:      %s\n", output.Yellow("dry run"))
			}
			if app.Broker.IsAuthenticated() {
				output.Printf("  Broker:      %s authenticated\n", output.SourceTag(app.brokerSource()))
			} else {
				output.Printf("  Broker:      %s %s\n", output.SourceTag(app.brokerSource()), output.Red("not authenticated"))
			}
			output.Println()

			output.Bold("Today")
			if dayState == "" {
				output.Printf("  State:       %s\n", output.DimText("no record yet"))
			} else {
				output.Printf("  State:       %s\n", dayState)
				if dayReason != "" {
					output.Printf("  Reason:      %s\n", dayReason)
				}
			}
			output.Println()

			printPreflight(ctx, output, app, date, now)

			output.Bold("Schedule")
			output.Printf("  Entry run:   %s\n", app.Config.Schedule.RunAt)
			output.Printf("  Settlement:  %s\n", app.Config.Schedule.SettleAt)
			if !app.Session.IsTradingDay(date) {
				next := app.Session.NextTradingDay(date)
				output.Printf("  Next session: %s\n", next.Format("Mon 02 Jan 2006"))
			}
			output.Println()
			return nil
		},
	}
}

func printPreflight(ctx context.Context, output *Output, app *App, date, now time.Time) {
	if app.Store == nil {
		return
	}
	checker := trading.NewPreflightChecker(app.Session, app.Store, app.Broker)
	result := checker.CheckEntry(ctx, date, now)

	output.Bold("Entry Preflight")
	for _, name := range result.ChecksPassed {
		output.Printf("  %s %s\n", output.Green("✓"), name)
	}
	for _, name := range result.ChecksFailed {
		output.Printf("  %s %s\n", output.Red("✗"), name)
	}
	if result.OK {
		output.Success("✓ Clear to enter")
	} else {
		output.Warning("Blocked: %s", result.BlockReason)
	}
	output.Println()
}

func newRangeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Show the opening range and what it implies",
		Long: `Fetch the 30-minute opening range candle for a date and evaluate the
bullish setup against it: a close above the open arms the put spread at
the range close, anything else defers to breakdown watching.`,
		Example: `  orb-trader range
  orb-trader range --date 2025-08-22`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Session == nil {
				output.Error("Session not configured")
				return nil
			}

			date := app.Session.DayOf(time.Now().In(app.Session.Location()))
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				parsed, err := time.ParseInLocation("2006-01-02", raw, app.Session.Location())
				if err != nil {
					output.Error("Invalid date %q, want YYYY-MM-DD", raw)
					return err
				}
				date = app.Session.DayOf(parsed)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			candles, err := app.Broker.GetCandles(ctx, broker.CandleRequest{
				Symbol:    app.Config.Trading.IndexSymbol,
				Start:     app.Session.MarketOpen(date),
				End:       app.Session.RangeClose(date),
				Frequency: 30,
			})
			if err != nil {
				output.Error("Candle fetch failed: %v", err)
				return err
			}
			if len(candles) == 0 {
				output.Warning("No opening range candle for %s", date.Format("2006-01-02"))
				return nil
			}

			or, err := strategy.RangeFromCandle(candles[0])
			if err != nil {
				output.Error("Bad opening candle: %v", err)
				return err
			}
			or.Date = date
			sig, triggered := strategy.EvaluateRange(or)

			if output.IsJSON() {
				payload := map[string]interface{}{
					"date":    date.Format("2006-01-02"),
					"open":    or.Open,
					"high":    or.High,
					"low":     or.Low,
					"close":   or.Close,
					"setup_a": triggered,
				}
				if triggered {
					spread := strategy.BuildSpread(sig, app.Config.Trading.SpreadWidth)
					payload["spread"] = report.SpreadLabel(spread)
					payload["reference"] = sig.Reference
				}
				return output.JSON(payload)
			}

			output.Println()
			output.Bold("Opening Range %s", date.Format("Mon 02 Jan 2006"))
			output.SourceLine(app.brokerSource(), "Open %.2f  High %.2f  Low %.2f  Close %.2f", or.Open, or.High, or.Low, or.Close)
			output.Println()

			if triggered {
				spread := strategy.BuildSpread(sig, app.Config.Trading.SpreadWidth)
				output.Bullish("↑ Range closed above its open: setup A arms at the range close")
				output.SourceLine(SourceCalc, "Sell %s against reference %.2f", report.SpreadLabel(spread), sig.Reference)
			} else {
				output.Bearish("↓ Range closed flat or down: watching for a 30-minute close below %.2f", or.Low)
				output.SourceLine(SourceCalc, "First close below the range low before the deadline sells a call spread")
			}
			output.Println()
			return nil
		},
	}

	cmd.Flags().String("date", "", "trading date (YYYY-MM-DD, default today)")
	return cmd
}
