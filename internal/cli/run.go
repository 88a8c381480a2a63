package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/metrics"
	"spx-orb-trader/internal/report"
	"spx-orb-trader/internal/scheduler"
)

// addTradingCommands adds the run, settle and daemon commands.
func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newSettleCmd(app))
	rootCmd.AddCommand(newDaemonCmd(app))
}

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one trading day end to end",
		Long: `Run the trading day decision loop for the current date.

The command waits for the opening range to complete, evaluates the two
setups in order, monitors spread quotes until an acceptable credit or
the entry deadline, and places at most one order. Re-running after a
completed day prints the stored result without trading again.

Interrupting mid-day leaves the day resumable; run again to continue.`,
		Example: `  orb-trader run
  orb-trader run --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			engine, err := app.engine()
			if err != nil {
				output.Error("%v", err)
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			day, err := engine.RunDay(ctx)
			if err != nil {
				switch {
				case apperrors.Is(err, apperrors.ErrMarketClosed):
					output.Warning("Not a trading session: %v", err)
					return err
				case ctx.Err() != nil:
					output.Warning("Interrupted, day left resumable. Run again to continue.")
					return err
				default:
					output.Error("Trading day failed: %v", err)
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(day)
			}
			report.NewRenderer(cmd.OutOrStdout(), app.Session.Location()).DayReport(day)
			return nil
		},
	}
}

func newSettleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle the day's spread at the official close",
		Long: `Fetch the official index close and settle the day's position.

With no decision on file the command is a no-op. Settling an already
settled day prints the stored result.`,
		Example: `  orb-trader settle
  orb-trader settle --date 2025-08-22`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			engine, err := app.engine()
			if err != nil {
				output.Error("%v", err)
				return err
			}

			date := time.Now()
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				date, err = time.ParseInLocation("2006-01-02", raw, app.Session.Location())
				if err != nil {
					output.Error("Invalid date %q, want YYYY-MM-DD", raw)
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			day, err := engine.SettleDay(ctx, date)
			if err != nil {
				output.Error("Settlement failed: %v", err)
				return err
			}
			if day == nil {
				output.Warning("No trading day on record for %s", date.Format("2006-01-02"))
				return nil
			}

			if output.IsJSON() {
				return output.JSON(day)
			}
			if day.Settlement == nil {
				output.Info("No position to settle for %s (state %s)", date.Format("2006-01-02"), day.State)
				return nil
			}
			report.NewRenderer(cmd.OutOrStdout(), app.Session.Location()).DayReport(day)
			return nil
		},
	}

	cmd.Flags().String("date", "", "trading date to settle (YYYY-MM-DD, default today)")
	return cmd
}

func newDaemonCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run on the exchange schedule until interrupted",
		Long: `Run the entry and settlement jobs on their configured schedules.

The entry job fires shortly before the open and works the whole decision
day; the settlement job fires after the close. Schedules come from the
[schedule] config section and are evaluated in the exchange timezone.
When metrics are enabled a Prometheus endpoint is served alongside.`,
		Example: `  orb-trader daemon
  orb-trader daemon --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			engine, err := app.engine()
			if err != nil {
				output.Error("%v", err)
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(engine, app.Session.Location(), app.Logger)
			if err := sched.Schedule(ctx, app.Config.Schedule); err != nil {
				output.Error("Invalid schedule: %v", err)
				return err
			}

			var metricsSrv *http.Server
			if app.Config.Metrics.Enabled {
				metricsSrv = metrics.Serve(app.Config.Metrics.ListenAddr, app.Logger)
				output.Info("Metrics listening on %s", app.Config.Metrics.ListenAddr)
			}

			sched.Start()
			output.Success("✓ Scheduler running (%s mode)", app.Config.Trading.Mode)
			for _, next := range sched.Next() {
				output.Dim("  next fire: %s", next.In(app.Session.Location()).Format("Mon 02 Jan 15:04:05 MST"))
			}
			output.Println("Press Ctrl+C to stop.")

			<-ctx.Done()

			output.Println()
			output.Info("Shutting down...")
			sched.Stop()
			if metricsSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			if app.Store != nil {
				_ = app.Store.Close()
			}
			output.Success("✓ Stopped cleanly")
			return nil
		},
	}
}
