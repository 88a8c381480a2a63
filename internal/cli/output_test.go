package cli

import (
	"bytes"
	"strings"
	"testing"

	"spx-orb-trader/internal/trading"
)

func plainOutput(buf *bytes.Buffer) *Output {
	return &Output{writer: buf, colorEnabled: false}
}

func coloredOutput(buf *bytes.Buffer) *Output {
	return &Output{writer: buf, colorEnabled: true}
}

func TestOutputFormatPnL(t *testing.T) {
	var buf bytes.Buffer
	o := plainOutput(&buf)

	cases := []struct {
		pnl  float64
		want string
	}{
		{360, "+$360.00"},
		{-40, "-$40.00"},
		{0, "$0.00"},
		{1234.5, "+$1,234.50"},
	}
	for _, tc := range cases {
		if got := o.FormatPnL(tc.pnl); got != tc.want {
			t.Errorf("FormatPnL(%v) = %q, want %q", tc.pnl, got, tc.want)
		}
	}
}

func TestOutputColoredStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	o := coloredOutput(&buf)

	colored := o.Green("up")
	if colored == "up" {
		t.Fatal("colored output should carry escape codes")
	}
	if got := stripANSI(colored); got != "up" {
		t.Errorf("stripANSI(%q) = %q, want %q", colored, got, "up")
	}

	plain := plainOutput(&buf)
	if got := plain.Green("up"); got != "up" {
		t.Errorf("plain Green = %q, want bare text", got)
	}
}

func TestOutputSourceTag(t *testing.T) {
	var buf bytes.Buffer
	o := plainOutput(&buf)

	for _, src := range []string{SourceSchwab, SourcePaper, SourceLocal, SourceCalc} {
		want := "[" + src + "]"
		if got := o.SourceTag(src); got != want {
			t.Errorf("SourceTag(%s) = %q, want %q", src, got, want)
		}
	}
}

func TestOutputSessionBadge(t *testing.T) {
	var buf bytes.Buffer
	o := plainOutput(&buf)

	cases := []struct {
		phase trading.SessionPhase
		want  string
	}{
		{trading.PhaseOpeningRange, "● OPENING RANGE"},
		{trading.PhaseEntryWindow, "● ENTRY WINDOW"},
		{trading.PhaseAfternoon, "● AFTERNOON"},
		{trading.PhasePreMarket, "● PRE-MARKET"},
		{trading.PhaseHoliday, "● HOLIDAY"},
		{trading.PhaseClosed, "● CLOSED"},
	}
	for _, tc := range cases {
		if got := o.SessionBadge(tc.phase); got != tc.want {
			t.Errorf("SessionBadge(%s) = %q, want %q", tc.phase, got, tc.want)
		}
	}
}

func TestTableRenderAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	o := plainOutput(&buf)

	table := NewTable(o, "Date", "P&L")
	table.AddRow("2025-08-25", "-$360.00")
	table.AddRow("2025-08-26", "+$1,080.00")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("rendered %d lines, want header + separator + 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Date") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "─") {
		t.Errorf("separator = %q", lines[1])
	}
	// The P&L column starts at the same offset in every row.
	offset := strings.Index(lines[2], "-$360.00")
	if offset == -1 || strings.Index(lines[3], "+$1,080.00") != offset {
		t.Errorf("columns misaligned:\n%s", buf.String())
	}
}

func TestOutputJSONMode(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf, jsonMode: true}

	if !o.IsJSON() {
		t.Fatal("IsJSON should be true")
	}
	if err := o.JSON(map[string]int{"qty": 9}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(buf.String(), "\"qty\": 9") {
		t.Errorf("JSON output = %q", buf.String())
	}
}
