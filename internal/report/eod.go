// Package report renders trading day summaries for the terminal.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"spx-orb-trader/internal/models"
	"spx-orb-trader/pkg/utils"
)

const rule = "─────────────────────────────────────────"

// Renderer writes human-readable day reports: cyan section headers,
// rule separators, aligned columns. Colors follow the usual terminal
// conventions and are suppressed automatically on non-TTY writers.
type Renderer struct {
	w   io.Writer
	loc *time.Location

	header *color.Color
	gain   *color.Color
	loss   *color.Color
	hint   *color.Color
}

// NewRenderer creates a renderer that writes to w. Times are shown in
// loc, normally the exchange timezone.
func NewRenderer(w io.Writer, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		w:      w,
		loc:    loc,
		header: color.New(color.FgCyan),
		gain:   color.New(color.FgGreen),
		loss:   color.New(color.FgRed),
		hint:   color.New(color.FgYellow),
	}
}

// DayReport renders the full end-of-day summary for one trading day.
func (r *Renderer) DayReport(day *models.DayResult) {
	if day == nil {
		return
	}

	fmt.Fprintln(r.w)
	r.header.Fprintf(r.w, "📊 Day Report - %s\n", day.Date.In(r.loc).Format("Mon 02 Jan 2006"))
	fmt.Fprintln(r.w, rule)
	fmt.Fprintf(r.w, "%-12s %s\n", "State:", day.State)
	if day.Reason != "" {
		fmt.Fprintf(r.w, "%-12s %s\n", "Reason:", day.Reason)
	}

	r.openingRange(day.OpeningRange)
	r.decision(day.Decision)
	r.settlement(day.Settlement)
	r.closer(day)
	fmt.Fprintln(r.w)
}

func (r *Renderer) openingRange(or *models.OpeningRange) {
	if or == nil {
		return
	}
	fmt.Fprintln(r.w)
	r.header.Fprintln(r.w, "📈 Opening Range")
	fmt.Fprintln(r.w, rule)
	fmt.Fprintf(r.w, "%-8s %10.2f\n", "Open", or.Open)
	fmt.Fprintf(r.w, "%-8s %10.2f\n", "High", or.High)
	fmt.Fprintf(r.w, "%-8s %10.2f\n", "Low", or.Low)
	fmt.Fprintf(r.w, "%-8s %10.2f\n", "Close", or.Close)
}

func (r *Renderer) decision(d *models.TradeDecision) {
	if d == nil {
		return
	}
	fmt.Fprintln(r.w)
	r.header.Fprintln(r.w, "🎯 Trade Decision")
	fmt.Fprintln(r.w, rule)
	fmt.Fprintf(r.w, "%-20s %s (%s)\n", "Setup:", d.Setup, d.Setup.Direction())
	fmt.Fprintf(r.w, "%-20s %s\n", "Spread:", SpreadLabel(d.Spread))
	fmt.Fprintf(r.w, "%-20s %.2f\n", "Reference price:", d.ReferencePrice)
	fmt.Fprintf(r.w, "%-20s %s\n", "Triggered:", r.clock(d.TriggerTime))
	fmt.Fprintf(r.w, "%-20s %s\n", "Filled:", r.clock(d.FillTime))
	fmt.Fprintf(r.w, "%-20s %s gross / %s net\n", "Credit:",
		utils.FormatPremium(d.GrossCredit), utils.FormatPremium(d.NetCredit))
	fmt.Fprintf(r.w, "%-20s %s contracts\n", "Quantity:", utils.FormatQuantity(int64(d.Quantity)))
	fmt.Fprintf(r.w, "%-20s %s of %s equity\n", "Risk budget:",
		utils.FormatUSD(d.RiskBudget), utils.FormatUSD(d.EquityBefore))
	fmt.Fprintf(r.w, "%-20s %s per spread\n", "Max loss:", utils.FormatUSD(d.MaxLossPerSpread))
	fmt.Fprintf(r.w, "%-20s %s (%s)\n", "Order:", d.OrderID, d.OrderStatus)
}

func (r *Renderer) settlement(s *models.SettlementResult) {
	if s == nil {
		return
	}
	fmt.Fprintln(r.w)
	r.header.Fprintln(r.w, "📦 Settlement")
	fmt.Fprintln(r.w, rule)
	fmt.Fprintf(r.w, "%-20s %.2f\n", "Index close:", s.ClosePrice)
	fmt.Fprintf(r.w, "%-20s %s points\n", "Spread value:", utils.FormatPremium(s.SettlementValue))
	fmt.Fprintf(r.w, "%-20s %s\n", "P&L per spread:", utils.FormatPnL(s.PnLPerSpread))
	fmt.Fprintf(r.w, "%-20s %s\n", "Settled:", r.clock(s.SettledAt))
}

func (r *Renderer) closer(day *models.DayResult) {
	fmt.Fprintln(r.w)
	switch {
	case day.Settlement != nil && day.Settlement.TotalPnL >= 0:
		r.gain.Fprintf(r.w, "✓ Day closed up %s\n", utils.FormatPnL(day.Settlement.TotalPnL))
	case day.Settlement != nil:
		r.loss.Fprintf(r.w, "✗ Day closed down %s\n", utils.FormatPnL(day.Settlement.TotalPnL))
	case day.State == models.StateFilled:
		r.hint.Fprintln(r.w, "⚠️ Position open, settlement pending")
	case day.State == models.StateDayEndedNoTrade:
		r.hint.Fprintln(r.w, "💡 No trade today")
	default:
		r.hint.Fprintf(r.w, "💡 Day in progress: %s\n", day.State)
	}
}

// History renders a compact multi-day table, newest first.
func (r *Renderer) History(days []models.DayResult) {
	fmt.Fprintln(r.w)
	r.header.Fprintln(r.w, "📅 Trading History")
	fmt.Fprintln(r.w, rule)
	if len(days) == 0 {
		r.hint.Fprintln(r.w, "💡 No recorded days in range")
		fmt.Fprintln(r.w)
		return
	}

	fmt.Fprintf(r.w, "%-12s %-20s %-6s %-16s %5s %7s %12s\n",
		"Date", "State", "Setup", "Spread", "Qty", "Net", "P&L")
	fmt.Fprintln(r.w, "────────────────────────────────────────────────────────────────────────────────")

	var total float64
	var wins, losses int
	for _, day := range days {
		date := day.Date.In(r.loc).Format("2006-01-02")
		if day.Decision == nil {
			fmt.Fprintf(r.w, "%-12s %-20s %-6s %-16s %5s %7s %12s\n",
				date, day.State, "-", "-", "-", "-", "-")
			continue
		}
		d := day.Decision

		pnl := "-"
		if day.Settlement != nil {
			pnl = utils.FormatPnL(day.Settlement.TotalPnL)
			total += day.Settlement.TotalPnL
			if day.Settlement.TotalPnL >= 0 {
				wins++
			} else {
				losses++
			}
		}
		fmt.Fprintf(r.w, "%-12s %-20s %-6s %-16s %5d %7s %12s\n",
			date, day.State, d.Setup, SpreadLabel(d.Spread), d.Quantity,
			utils.FormatPremium(d.NetCredit), pnl)
	}

	fmt.Fprintln(r.w)
	settled := wins + losses
	if settled > 0 {
		fmt.Fprintf(r.w, "%-12s %d settled, %d win / %d loss\n", "Record:", settled, wins, losses)
		if total >= 0 {
			r.gain.Fprintf(r.w, "✓ Net %s over %d settled days\n", utils.FormatPnL(total), settled)
		} else {
			r.loss.Fprintf(r.w, "✗ Net %s over %d settled days\n", utils.FormatPnL(total), settled)
		}
	}
	fmt.Fprintln(r.w)
}

// SpreadLabel formats a spread as short/long strikes plus type, the
// form used across reports and notifications.
func SpreadLabel(s models.Spread) string {
	return fmt.Sprintf("%s/%s %s", utils.FormatStrike(s.ShortStrike),
		utils.FormatStrike(s.LongStrike), s.Type)
}

func (r *Renderer) clock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(r.loc).Format("15:04:05 MST")
}
