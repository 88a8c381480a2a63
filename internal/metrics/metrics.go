// Package metrics exposes Prometheus metrics for the trading engine.
//
// Primary series updated during a session:
//   - orb_day_state{state}: current engine state (one series set to 1)
//   - orb_decisions_total{setup}: triggered setups (A|B)
//   - orb_orders_total{mode}: spread orders placed (live|dry_run|paper)
//   - orb_quote_polls_total: quote polls during monitoring
//   - orb_quote_poll_failures_total: polls that produced no usable credit
//   - orb_net_credit: last evaluated net credit
//   - orb_equity_usd: account equity at sizing time
//   - orb_day_pnl_usd: most recent settled day P&L
//   - orb_settlements_total{result}: settled days by result (win|loss)
//
// Registered in init() and served at /metrics in text exposition format.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	dayState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orb_day_state",
			Help: "Current day state (labeled series flipped between 0/1)",
		},
		[]string{"state"},
	)

	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orb_decisions_total",
			Help: "Setups triggered",
		},
		[]string{"setup"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orb_orders_total",
			Help: "Spread orders placed",
		},
		[]string{"mode"},
	)

	quotePolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orb_quote_polls_total",
			Help: "Quote polls during credit monitoring",
		},
	)

	quotePollFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orb_quote_poll_failures_total",
			Help: "Quote polls with no usable two-sided market",
		},
	)

	netCredit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orb_net_credit",
			Help: "Last evaluated net credit per spread",
		},
	)

	equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orb_equity_usd",
			Help: "Account equity in USD at sizing time",
		},
	)

	dayPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orb_day_pnl_usd",
			Help: "Most recent settled day P&L in USD",
		},
	)

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orb_settlements_total",
			Help: "Settled days by result",
		},
		[]string{"result"},
	)
)

// knownStates keeps the day state gauge exhaustive so dashboards can
// sum the vector to exactly 1.
var knownStates = []string{
	"AWAITING_OR",
	"EVALUATING_SETUP_A",
	"MONITORING_A",
	"EVALUATING_SETUP_B",
	"MONITORING_B",
	"FILLED",
	"DAY_ENDED_NO_TRADE",
}

func init() {
	prometheus.MustRegister(dayState, decisions, orders)
	prometheus.MustRegister(quotePolls, quotePollFailures, netCredit)
	prometheus.MustRegister(equity, dayPnL, settlements)
}

// SetDayState flips the state gauge so exactly one series reads 1.
func SetDayState(state string) {
	for _, s := range knownStates {
		if s == state {
			dayState.WithLabelValues(s).Set(1)
		} else {
			dayState.WithLabelValues(s).Set(0)
		}
	}
}

func IncDecision(setup string)    { decisions.WithLabelValues(setup).Inc() }
func IncOrderPlaced(mode string)  { orders.WithLabelValues(mode).Inc() }
func IncQuotePoll()               { quotePolls.Inc() }
func IncQuotePollFailure()        { quotePollFailures.Inc() }
func SetNetCredit(v float64)      { netCredit.Set(v) }
func SetEquity(v float64)         { equity.Set(v) }
func SetDayPnL(v float64)         { dayPnL.Set(v) }
func IncSettlement(result string) { settlements.WithLabelValues(result).Inc() }

// Serve starts the metrics/health HTTP server in the background and
// returns it so the caller can shut it down.
func Serve(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return srv
}
