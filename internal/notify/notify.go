// Package notify provides notification functionality for the trading application.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"spx-orb-trader/internal/config"
	"spx-orb-trader/internal/models"
	"spx-orb-trader/pkg/utils"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendFill(ctx context.Context, decision *models.TradeDecision) error
	SendDayReport(ctx context.Context, day *models.DayResult) error
	SendError(ctx context.Context, err error, context string) error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTrade   NotificationType = "trade"
	NotificationError   NotificationType = "error"
	NotificationSummary NotificationType = "summary"
	NotificationInfo    NotificationType = "info"
)

// NotificationLevel represents the notification level filter.
type NotificationLevel string

const (
	LevelAll        NotificationLevel = "all"
	LevelTradesOnly NotificationLevel = "trades_only"
	LevelErrorsOnly NotificationLevel = "errors_only"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []NotificationChannel
	level    NotificationLevel
	mu       sync.RWMutex
}

// NewMultiNotifier creates a new MultiNotifier with the given configuration.
func NewMultiNotifier(cfg *config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{
		channels: make([]NotificationChannel, 0),
		level:    NotificationLevel(cfg.Level),
	}

	if mn.level == "" {
		mn.level = LevelAll
	}

	if !cfg.Enabled {
		return mn
	}

	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Email.Enabled {
		mn.channels = append(mn.channels, NewEmailNotifier(cfg.Email))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// shouldSend checks if a notification should be sent based on the level filter.
func (mn *MultiNotifier) shouldSend(notifType NotificationType) bool {
	switch mn.level {
	case LevelTradesOnly:
		return notifType == NotificationTrade
	case LevelErrorsOnly:
		return notifType == NotificationError
	default:
		return true
	}
}

// Send sends a notification to all enabled channels.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if !mn.shouldSend(n.Type) {
		return nil
	}

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if ch.IsEnabled() {
			if err := ch.Send(ctx, n); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendFill sends a notification when a spread order is accepted.
func (mn *MultiNotifier) SendFill(ctx context.Context, d *models.TradeDecision) error {
	title := fmt.Sprintf("🔔 Spread Sold: %s %s/%s x%d",
		d.Spread.Type,
		utils.FormatStrike(d.Spread.ShortStrike),
		utils.FormatStrike(d.Spread.LongStrike),
		d.Quantity)

	message := fmt.Sprintf(
		"Setup: %s (%s)\nSpread: %s %s/%s\nQuantity: %d\nGross Credit: %s\nNet Credit: %s\nMax Loss/Spread: %s\nRisk Budget: %s\nOrder ID: %s",
		d.Setup,
		d.Setup.Direction(),
		d.Spread.Type,
		utils.FormatStrike(d.Spread.ShortStrike),
		utils.FormatStrike(d.Spread.LongStrike),
		d.Quantity,
		utils.FormatPremium(d.GrossCredit),
		utils.FormatPremium(d.NetCredit),
		utils.FormatUSD(d.MaxLossPerSpread),
		utils.FormatUSD(d.RiskBudget),
		d.OrderID,
	)

	return mn.Send(ctx, Notification{
		Type:    NotificationTrade,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"date":         d.Date.Format("2006-01-02"),
			"setup":        string(d.Setup),
			"option_type":  string(d.Spread.Type),
			"short_strike": d.Spread.ShortStrike,
			"long_strike":  d.Spread.LongStrike,
			"gross_credit": d.GrossCredit,
			"net_credit":   d.NetCredit,
			"quantity":     d.Quantity,
			"order_id":     d.OrderID,
		},
	})
}

// SendDayReport sends the end-of-day outcome, settled or not.
func (mn *MultiNotifier) SendDayReport(ctx context.Context, day *models.DayResult) error {
	date := day.Date.Format("2006-01-02")

	if day.Decision == nil || day.Settlement == nil {
		title := fmt.Sprintf("📊 No Trade - %s", date)
		message := fmt.Sprintf("State: %s", day.State)
		if day.Reason != "" {
			message += fmt.Sprintf("\nReason: %s", day.Reason)
		}
		return mn.Send(ctx, Notification{
			Type:    NotificationSummary,
			Title:   title,
			Message: message,
			Data: map[string]interface{}{
				"date":   date,
				"state":  string(day.State),
				"reason": day.Reason,
			},
		})
	}

	d := day.Decision
	s := day.Settlement

	pnlEmoji := "💰"
	if s.TotalPnL < 0 {
		pnlEmoji = "📉"
	}

	title := fmt.Sprintf("%s Day Settled - %s: %s", pnlEmoji, date, utils.FormatPnL(s.TotalPnL))
	message := fmt.Sprintf(
		"Spread: %s %s/%s x%d\nNet Credit: %s\nSPX Close: %.2f\nSettlement Value: %s\nP&L/Spread: %s\nTotal P&L: %s",
		d.Spread.Type,
		utils.FormatStrike(d.Spread.ShortStrike),
		utils.FormatStrike(d.Spread.LongStrike),
		d.Quantity,
		utils.FormatPremium(d.NetCredit),
		s.ClosePrice,
		utils.FormatPremium(s.SettlementValue),
		utils.FormatPnL(s.PnLPerSpread),
		utils.FormatPnL(s.TotalPnL),
	)

	return mn.Send(ctx, Notification{
		Type:    NotificationSummary,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"date":             date,
			"setup":            string(d.Setup),
			"quantity":         d.Quantity,
			"net_credit":       d.NetCredit,
			"close_price":      s.ClosePrice,
			"settlement_value": s.SettlementValue,
			"pnl_per_spread":   s.PnLPerSpread,
			"total_pnl":        s.TotalPnL,
		},
	})
}

// SendError sends an error notification.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, errContext string) error {
	title := "❌ Error Occurred"
	message := fmt.Sprintf("Context: %s\nError: %v\nTime: %s",
		errContext, err, time.Now().Format("15:04:05"))

	return mn.Send(ctx, Notification{
		Type:    NotificationError,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"context": errContext,
			"error":   err.Error(),
		},
	})
}

// WebhookNotifier sends notifications via HTTP webhook.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Send sends a notification via webhook.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ORBTrader/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// EmailNotifier sends notifications via email using SMTP.
type EmailNotifier struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
	to       string
	enabled  bool
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		smtpHost: cfg.SMTPHost,
		smtpPort: cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		to:       cfg.To,
		enabled:  cfg.Enabled && cfg.SMTPHost != "" && cfg.From != "" && cfg.To != "",
	}
}

// Name returns the name of the notifier.
func (e *EmailNotifier) Name() string {
	return "email"
}

// IsEnabled returns whether the notifier is enabled.
func (e *EmailNotifier) IsEnabled() bool {
	return e.enabled
}

// Send sends a notification via email.
func (e *EmailNotifier) Send(ctx context.Context, n Notification) error {
	if !e.enabled {
		return nil
	}

	subject := n.Title
	body := n.Message

	if len(n.Data) > 0 {
		dataJSON, _ := json.MarshalIndent(n.Data, "", "  ")
		body += "\n\n---\nData:\n" + string(dataJSON)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		e.from, e.to, subject, body)

	addr := fmt.Sprintf("%s:%d", e.smtpHost, e.smtpPort)

	var auth smtp.Auth
	if e.username != "" && e.password != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.smtpHost)
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if e.smtpPort == 465 {
		return e.sendWithTLS(addr, auth, msg)
	}

	return smtp.SendMail(addr, auth, e.from, []string{e.to}, []byte(msg))
}

// sendWithTLS sends email using implicit TLS (port 465).
func (e *EmailNotifier) sendWithTLS(addr string, auth smtp.Auth, msg string) error {
	tlsConfig := &tls.Config{
		ServerName: e.smtpHost,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.smtpHost)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(e.from); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}

	if err := client.Rcpt(e.to); err != nil {
		return fmt.Errorf("SMTP RCPT command failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}

	_, err = w.Write([]byte(msg))
	if err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

// NoOpNotifier is a notifier that does nothing (for testing or disabled notifications).
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Send does nothing.
func (n *NoOpNotifier) Send(ctx context.Context, notif Notification) error {
	return nil
}

// SendFill does nothing.
func (n *NoOpNotifier) SendFill(ctx context.Context, decision *models.TradeDecision) error {
	return nil
}

// SendDayReport does nothing.
func (n *NoOpNotifier) SendDayReport(ctx context.Context, day *models.DayResult) error {
	return nil
}

// SendError does nothing.
func (n *NoOpNotifier) SendError(ctx context.Context, err error, context string) error {
	return nil
}
