package cli

import (
	"github.com/spf13/cobra"
)

// addHelpCommands adds onboarding and documentation commands.
func addHelpCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newQuickstartCmd(app))
}

func newQuickstartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		Long:  "Step-by-step guide for setting up and running the trader.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("orb-trader - Quick Start Guide")
			output.Println()

			steps := []struct {
				step  int
				title string
				desc  string
				cmd   string
			}{
				{
					step:  1,
					title: "Create the Config Files",
					desc:  "The first run writes commented templates into the config directory.",
					cmd:   "orb-trader config path  # Shows the config directory",
				},
				{
					step:  2,
					title: "Add Schwab Credentials",
					desc:  "Edit credentials.toml with your Schwab app key, secret and redirect URI.",
					cmd:   "orb-trader config validate",
				},
				{
					step:  3,
					title: "Authorize with Schwab",
					desc:  "Opens the OAuth consent page and stores the refresh token.",
					cmd:   "orb-trader auth login",
				},
				{
					step:  4,
					title: "Check the Session",
					desc:  "Shows the exchange phase, broker mode and entry preflight.",
					cmd:   "orb-trader status",
				},
				{
					step:  5,
					title: "Inspect Today's Range",
					desc:  "Fetches the 09:30-10:00 candle and shows which setup is armed.",
					cmd:   "orb-trader range",
				},
				{
					step:  6,
					title: "Run a Paper Day",
					desc:  "With trading.mode = \"paper\" the full day runs against the simulated broker.",
					cmd:   "orb-trader run",
				},
				{
					step:  7,
					title: "Run on the Schedule",
					desc:  "The daemon fires the entry run at 09:28 ET and settlement at 16:15 ET.",
					cmd:   "orb-trader daemon",
				},
				{
					step:  8,
					title: "Review Results",
					desc:  "Day reports, multi-day history and the CSV journal.",
					cmd:   "orb-trader report --days 30",
				},
			}

			for _, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), s.step, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Configuration Files")
			output.Println()
			output.Printf("  %s - Trading, risk, session and schedule settings\n", output.Cyan("config.toml"))
			output.Printf("  %s - Schwab API credentials\n", output.Cyan("credentials.toml"))
			output.Printf("  %s - OAuth tokens, managed by 'auth login'\n", output.Cyan("tokens.json"))
			output.Println()

			output.Bold("Going Live")
			output.Println()
			output.Printf("  %s Set trading.mode = \"live\" in config.toml\n", output.Cyan("1."))
			output.Printf("  %s Set trading.dry_run = false\n", output.Cyan("2."))
			output.Printf("  %s Set trading.live_trading_enabled = true\n", output.Cyan("3."))
			output.Println()

			output.Bold("Important Notes")
			output.Println()
			output.Printf("  %s Start in paper mode and review a few day reports first\n", output.Yellow("⚠"))
			output.Printf("  %s Orders stay simulated until all three live switches agree\n", output.Yellow("⚠"))
			output.Printf("  %s Spreads are held to expiry; the engine never exits early\n", output.Yellow("⚠"))
			output.Printf("  %s Set SCHWAB_TOKEN_PASSPHRASE to encrypt the token file\n", output.Yellow("⚠"))

			return nil
		},
	}
}
