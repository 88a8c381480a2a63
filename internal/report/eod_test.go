package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"spx-orb-trader/internal/models"
)

func reportLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func filledDay(loc *time.Location) *models.DayResult {
	date := time.Date(2025, 8, 25, 0, 0, 0, 0, loc)
	return &models.DayResult{
		Date:  date,
		State: models.StateFilled,
		OpeningRange: &models.OpeningRange{
			Date:  date,
			Open:  6750,
			High:  6770,
			Low:   6745,
			Close: 6760,
		},
		Decision: &models.TradeDecision{
			Date:  date,
			Setup: models.SetupA,
			Spread: models.Spread{
				Type:        models.OptionPut,
				ShortStrike: 6760,
				LongStrike:  6750,
			},
			ReferencePrice:   6760,
			TriggerTime:      time.Date(2025, 8, 25, 10, 0, 0, 0, loc),
			FillTime:         time.Date(2025, 8, 25, 10, 0, 10, 0, loc),
			GrossCredit:      4.70,
			NetCredit:        4.60,
			Quantity:         9,
			RiskBudget:       5000,
			MaxLossPerSpread: 540,
			EquityBefore:     100000,
			OrderID:          "PAPER_1",
			OrderStatus:      "ACCEPTED",
		},
	}
}

func settle(day *models.DayResult, loc *time.Location) *models.DayResult {
	day.Settlement = &models.SettlementResult{
		ClosePrice:      6755,
		SettlementValue: 5,
		PnLPerSpread:    -40,
		TotalPnL:        -360,
		SettledAt:       time.Date(2025, 8, 25, 16, 15, 0, 0, loc),
	}
	return day
}

func renderDay(t *testing.T, day *models.DayResult) string {
	t.Helper()
	color.NoColor = true
	var buf bytes.Buffer
	NewRenderer(&buf, reportLocation(t)).DayReport(day)
	return buf.String()
}

func TestDayReportSettledLoss(t *testing.T) {
	loc := reportLocation(t)
	out := renderDay(t, settle(filledDay(loc), loc))

	for _, want := range []string{
		"Day Report - Mon 25 Aug 2025",
		"FILLED",
		"Opening Range",
		"6750.00",
		"6770.00",
		"6745.00",
		"6760.00",
		"Trade Decision",
		"A (BULLISH)",
		"6760/6750 PUT",
		"10:00:00 EDT",
		"4.70 gross / 4.60 net",
		"9 contracts",
		"$5,000.00 of $100,000.00",
		"$540.00 per spread",
		"PAPER_1 (ACCEPTED)",
		"Settlement",
		"6755.00",
		"5.00 points",
		"-$40.00",
		"✗ Day closed down -$360.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
}

func TestDayReportNoTrade(t *testing.T) {
	loc := reportLocation(t)
	day := &models.DayResult{
		Date:   time.Date(2025, 8, 25, 0, 0, 0, 0, loc),
		State:  models.StateDayEndedNoTrade,
		Reason: "no trigger before entry deadline",
		OpeningRange: &models.OpeningRange{
			Open: 6750, High: 6770, Low: 6745, Close: 6740,
		},
	}
	out := renderDay(t, day)

	if !strings.Contains(out, "no trigger before entry deadline") {
		t.Errorf("report missing reason\n%s", out)
	}
	if !strings.Contains(out, "💡 No trade today") {
		t.Errorf("report missing no-trade closer\n%s", out)
	}
	if strings.Contains(out, "Trade Decision") {
		t.Errorf("no-trade report should not show a decision section\n%s", out)
	}
	if strings.Contains(out, "Settlement") {
		t.Errorf("no-trade report should not show a settlement section\n%s", out)
	}
}

func TestDayReportPendingSettlement(t *testing.T) {
	loc := reportLocation(t)
	out := renderDay(t, filledDay(loc))

	if !strings.Contains(out, "⚠️ Position open, settlement pending") {
		t.Errorf("unsettled fill should show pending closer\n%s", out)
	}
	if strings.Contains(out, "Day closed") {
		t.Errorf("unsettled fill should not show a closed result\n%s", out)
	}
}

func TestDayReportNilDayRendersNothing(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	NewRenderer(&buf, nil).DayReport(nil)
	if buf.Len() != 0 {
		t.Errorf("nil day produced output: %q", buf.String())
	}
}

func TestHistoryTable(t *testing.T) {
	loc := reportLocation(t)
	noTrade := &models.DayResult{
		Date:   time.Date(2025, 8, 22, 0, 0, 0, 0, loc),
		State:  models.StateDayEndedNoTrade,
		Reason: "no trigger before entry deadline",
	}
	days := []models.DayResult{*settle(filledDay(loc), loc), *noTrade}

	color.NoColor = true
	var buf bytes.Buffer
	NewRenderer(&buf, loc).History(days)
	out := buf.String()

	for _, want := range []string{
		"Trading History",
		"2025-08-25",
		"2025-08-22",
		"6760/6750 PUT",
		"-$360.00",
		"DAY_ENDED_NO_TRADE",
		"1 settled, 0 win / 1 loss",
		"✗ Net -$360.00 over 1 settled days",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("history missing %q\n%s", want, out)
		}
	}
}

func TestHistoryEmpty(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	NewRenderer(&buf, reportLocation(t)).History(nil)
	if !strings.Contains(buf.String(), "No recorded days") {
		t.Errorf("empty history missing placeholder\n%s", buf.String())
	}
}

func TestSpreadLabel(t *testing.T) {
	cases := []struct {
		spread models.Spread
		want   string
	}{
		{models.Spread{Type: models.OptionPut, ShortStrike: 6760, LongStrike: 6750}, "6760/6750 PUT"},
		{models.Spread{Type: models.OptionCall, ShortStrike: 6740, LongStrike: 6750}, "6740/6750 CALL"},
	}
	for _, tc := range cases {
		if got := SpreadLabel(tc.spread); got != tc.want {
			t.Errorf("SpreadLabel(%v) = %q, want %q", tc.spread, got, tc.want)
		}
	}
}
