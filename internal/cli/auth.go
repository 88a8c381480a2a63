// Package cli provides the command-line interface for the trading application.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// addAuthCommands adds authentication commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Schwab API session",
		Long: `Manage the Schwab OAuth session.

Schwab access tokens last 30 minutes and refresh automatically. The
refresh token itself expires after 7 days, at which point 'auth login'
must be run again.`,
	}

	cmd.AddCommand(newAuthLoginCmd(app))
	cmd.AddCommand(newAuthStatusCmd(app))
	cmd.AddCommand(newAuthRefreshCmd(app))
	cmd.AddCommand(newAuthLogoutCmd(app))
	rootCmd.AddCommand(cmd)
}

func newAuthLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize against the Schwab API",
		Long: `Run the OAuth authorization-code flow.

A browser window opens on the Schwab consent page. After approving, the
browser redirects to your configured callback URL; paste that full URL
(or just the code parameter) back here to finish.`,
		Example: `  orb-trader auth login
  orb-trader auth login --code C0.xxxx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Auth == nil {
				output.Error("Schwab credentials not configured. Add them to credentials.toml")
				return fmt.Errorf("credentials not configured")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if code, _ := cmd.Flags().GetString("code"); code != "" {
				return completeLogin(ctx, app, output, code)
			}

			if app.Auth.IsAuthenticated() {
				output.Success("✓ Already authenticated")
				return showAuthStatus(app, output)
			}

			loginURL := app.Auth.AuthorizeURL()
			output.Info("Opening Schwab consent page...")
			output.Println()
			output.Bold("Login URL:")
			output.Println(loginURL)
			output.Println()

			if err := openURL(loginURL); err != nil {
				output.Warning("Could not open browser automatically")
			}

			output.Info("After approving, the browser lands on your callback URL:")
			output.Dim("  https://your-callback/?code=C0.XXXX%%40&session=...")
			output.Println()
			output.Bold("Paste the full redirect URL (or just the code) here:")

			reader := bufio.NewReader(os.Stdin)
			fmt.Print("> ")
			pasted, _ := reader.ReadString('\n')
			pasted = strings.TrimSpace(pasted)
			if pasted == "" {
				output.Error("Nothing pasted")
				return fmt.Errorf("no authorization code provided")
			}

			code, err := extractAuthCode(pasted)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			return completeLogin(ctx, app, output, code)
		},
	}

	cmd.Flags().String("code", "", "authorization code from the redirect URL")
	return cmd
}

// extractAuthCode pulls the code parameter out of a pasted redirect
// URL. A bare code passes through unchanged.
func extractAuthCode(pasted string) (string, error) {
	if !strings.Contains(pasted, "code=") {
		return pasted, nil
	}
	parsed, err := url.Parse(pasted)
	if err != nil {
		return "", fmt.Errorf("could not parse redirect URL: %w", err)
	}
	code := parsed.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL carries no code parameter")
	}
	return code, nil
}

func completeLogin(ctx context.Context, app *App, output *Output, code string) error {
	output.Info("Exchanging authorization code...")
	if err := app.Auth.ExchangeCode(ctx, code); err != nil {
		output.Error("Login failed: %v", err)
		return err
	}
	output.Success("✓ Login successful!")
	return showAuthStatus(app, output)
}

// showAuthStatus displays token expiry and session info.
func showAuthStatus(app *App, output *Output) error {
	token, ok := app.Auth.Current()
	if !ok {
		output.Warning("No token on file")
		return nil
	}

	now := time.Now()
	output.Println()
	output.Bold("Session")
	if remaining := time.Until(token.ExpiresAt()); remaining > 0 {
		output.Printf("  Access token:  expires in %s\n", formatDuration(remaining))
	} else {
		output.Printf("  Access token:  %s (refreshes on next use)\n", output.Yellow("expired"))
	}

	refreshDeadline := token.RefreshIssuedAt.Add(7 * 24 * time.Hour)
	if token.RefreshExpired(now) {
		output.Printf("  Refresh token: %s\n", output.Red("expired, run 'auth login'"))
	} else {
		output.Printf("  Refresh token: valid until %s (%s remaining)\n",
			refreshDeadline.Format("Mon 02 Jan 15:04"),
			formatDuration(time.Until(refreshDeadline)))
	}
	output.Printf("  Token file:    %s\n", app.Config.Credentials.Schwab.TokenPath)
	if os.Getenv("SCHWAB_TOKEN_PASSPHRASE") != "" {
		output.Printf("  Encryption:    %s\n", output.Green("enabled"))
	} else {
		output.Printf("  Encryption:    %s\n", output.Yellow("disabled, set SCHWAB_TOKEN_PASSPHRASE"))
	}
	return nil
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Auth == nil {
				output.Error("Schwab credentials not configured")
				return nil
			}

			if output.IsJSON() {
				token, ok := app.Auth.Current()
				payload := map[string]interface{}{
					"authenticated": app.Auth.IsAuthenticated(),
				}
				if ok {
					payload["access_expires_at"] = token.ExpiresAt().Format(time.RFC3339)
					payload["refresh_expired"] = token.RefreshExpired(time.Now())
				}
				return output.JSON(payload)
			}

			if !app.Auth.IsAuthenticated() {
				output.Warning("Not authenticated")
				output.Println()
				output.Info("Run 'orb-trader auth login' to authenticate")
				return nil
			}

			output.Success("✓ Authenticated")
			return showAuthStatus(app, output)
		},
	}
}

func newAuthRefreshCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token now",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Auth == nil {
				output.Error("Schwab credentials not configured")
				return fmt.Errorf("credentials not configured")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := app.Auth.Refresh(ctx); err != nil {
				output.Error("Refresh failed: %v", err)
				output.Info("If the refresh token has expired, run 'orb-trader auth login'")
				return err
			}
			output.Success("✓ Token refreshed")
			return showAuthStatus(app, output)
		},
	}
}

func newAuthLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the stored token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Auth == nil {
				output.Warning("No active session found.")
				return nil
			}
			if !app.Auth.IsAuthenticated() {
				output.Warning("Not currently logged in.")
				return nil
			}

			if err := app.Auth.Logout(); err != nil {
				output.Error("Logout failed: %v", err)
				return err
			}

			output.Success("✓ Logged out")
			output.Dim("Token file removed.")
			return nil
		},
	}
}

func openURL(rawURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "linux":
		cmd = exec.Command("xdg-open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours >= 24 {
		return fmt.Sprintf("%dd %dh", hours/24, hours%24)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
