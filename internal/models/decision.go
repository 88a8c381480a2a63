package models

import "time"

// SetupType identifies which branch of the decision tree triggered.
type SetupType string

const (
	// SetupA is the bullish opening-range setup: OR close above OR open
	// at 10:00 ET, entered with a PUT credit spread.
	SetupA SetupType = "A"
	// SetupB is the bearish OR-low breakout setup: a 30-minute candle
	// closing below the OR low before 12:00 ET, entered with a CALL
	// credit spread. Only evaluated when Setup A was never eligible.
	SetupB SetupType = "B"
)

// Direction returns the bias the setup trades.
func (s SetupType) Direction() string {
	if s == SetupB {
		return "BEARISH"
	}
	return "BULLISH"
}

// DayState is the decision engine's state for one trading day.
type DayState string

const (
	StateAwaitingOR       DayState = "AWAITING_OR"
	StateEvaluatingSetupA DayState = "EVALUATING_SETUP_A"
	StateMonitoringA      DayState = "MONITORING_A"
	StateEvaluatingSetupB DayState = "EVALUATING_SETUP_B"
	StateMonitoringB      DayState = "MONITORING_B"
	StateFilled           DayState = "FILLED"
	StateDayEndedNoTrade  DayState = "DAY_ENDED_NO_TRADE"
)

// IsTerminal reports whether the state ends the trading day.
func (s DayState) IsTerminal() bool {
	return s == StateFilled || s == StateDayEndedNoTrade
}

// TradeDecision is the single trade a day may produce. It is created
// only after the broker confirms order acceptance; fields are never
// mutated afterwards except by settlement.
type TradeDecision struct {
	Date             time.Time
	Setup            SetupType
	Spread           Spread
	ReferencePrice   float64
	TriggerTime      time.Time
	FillTime         time.Time
	GrossCredit      float64
	NetCredit        float64
	Quantity         int
	RiskBudget       float64
	MaxLossPerSpread float64
	EquityBefore     float64
	OrderID          string
	OrderStatus      string
}

// SizingResult carries the intermediate values of position sizing.
// Recomputed at the moment of credit acceptance, not stored on its own.
type SizingResult struct {
	RiskBudget       float64
	MaxLossPerSpread float64
	RawQuantity      int
	Quantity         int
}

// SettlementResult is the cash-settled outcome of the day's spread at
// expiration.
type SettlementResult struct {
	ClosePrice      float64
	SettlementValue float64
	PnLPerSpread    float64
	TotalPnL        float64
	SettledAt       time.Time
}

// DayResult summarizes one trading day for reporting and persistence.
type DayResult struct {
	Date         time.Time
	State        DayState
	OpeningRange *OpeningRange
	Decision     *TradeDecision
	Settlement   *SettlementResult
	Reason       string
}
