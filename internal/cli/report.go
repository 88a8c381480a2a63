package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spx-orb-trader/internal/report"
	"spx-orb-trader/pkg/utils"
)

// addReportCommands adds result and journal inspection commands.
func addReportCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newReportCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))
}

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show a day report or recent history",
		Long: `Show the stored result for one trading day, or a history table.

With --days the command lists the most recent recorded days instead of
a single day report.`,
		Example: `  orb-trader report
  orb-trader report --date 2025-08-22
  orb-trader report --days 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store unavailable")
				return fmt.Errorf("store unavailable")
			}
			if app.Session == nil {
				output.Error("Session not configured")
				return fmt.Errorf("session not configured")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			days, _ := cmd.Flags().GetInt("days")
			if days > 0 {
				return showHistory(ctx, output, app, days)
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

			day, err := app.Store.GetDay(ctx, date)
			if err != nil {
				output.Error("Lookup failed: %v", err)
				return err
			}
			if day == nil {
				output.Warning("No record for %s", date.Format("2006-01-02"))
				return nil
			}

			if output.IsJSON() {
				return output.JSON(day)
			}
			report.NewRenderer(cmd.OutOrStdout(), app.Session.Location()).DayReport(day)
			return nil
		},
	}

	cmd.Flags().String("date", "", "trading date (YYYY-MM-DD, default today)")
	cmd.Flags().Int("days", 0, "show a history table for the last N calendar days")
	return cmd
}

func showHistory(ctx context.Context, output *Output, app *App, days int) error {
	to := time.Now().In(app.Session.Location())
	from := to.AddDate(0, 0, -days)

	history, err := app.Store.GetHistory(ctx, from, to, 0)
	if err != nil {
		output.Error("History lookup failed: %v", err)
		return err
	}

	if output.IsJSON() {
		return output.JSON(history)
	}
	report.NewRenderer(output.writer, app.Session.Location()).History(history)
	return nil
}

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and archive the trade journal",
		Long:  "The journal is an append-only CSV of settled trades, one row per trade.",
	}

	cmd.AddCommand(newJournalShowCmd(app))
	cmd.AddCommand(newJournalPathCmd(app))
	cmd.AddCommand(newJournalArchiveCmd(app))
	return cmd
}

func newJournalShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show recent journal rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			rows, err := app.Journal.ReadAll()
			if err != nil {
				output.Error("Journal read failed: %v", err)
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			if limit > 0 && len(rows) > limit {
				rows = rows[len(rows)-limit:]
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Dim("Journal is empty.")
				return nil
			}

			table := NewTable(output, "Date", "Setup", "Spread", "Qty", "Net", "Close", "P&L")
			var total float64
			for _, row := range rows {
				spread := fmt.Sprintf("%s/%s %s",
					utils.FormatStrike(row.ShortStrike), utils.FormatStrike(row.LongStrike), row.OptionType)
				table.AddRow(
					row.Date,
					row.Setup,
					spread,
					utils.FormatQuantity(int64(row.Quantity)),
					utils.FormatPremium(row.NetCredit),
					utils.FormatPremium(row.ClosePrice),
					output.FormatPnL(row.TotalPnL),
				)
				total += row.TotalPnL
			}
			output.Println()
			table.Render()
			output.Println()
			output.Printf("Total over %d trades: %s\n", len(rows), output.FormatPnL(total))
			output.Println()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum rows to show (0 for all)")
	return cmd
}

func newJournalPathCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the journal file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Journal.Path()})
			} else {
				output.Println(app.Journal.Path())
			}
		},
	}
}

func newJournalArchiveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Upload the journal to the configured S3 bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Archiver == nil {
				output.Error("Archiving not configured, set [archive] in config.toml")
				return fmt.Errorf("archiver not configured")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			location, err := app.Archiver.ArchiveJournal(ctx, app.Journal.Path(), time.Now())
			if err != nil {
				output.Error("Archive failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"location": location})
			}
			output.Success("✓ Journal archived to %s", location)
			return nil
		},
	}
}
