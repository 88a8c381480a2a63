package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/models"
)

const (
	defaultTraderBase     = "https://api.schwabapi.com/trader/v1"
	defaultMarketDataBase = "https://api.schwabapi.com/marketdata/v1"

	// Dry-run orders never reach the API; this marker makes them
	// unmistakable in logs and the journal.
	dryRunOrderID = "DRY_RUN_MOCK_ORDER_ID"
)

// TokenSource supplies bearer tokens for API calls. The auth package's
// Manager satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	IsAuthenticated() bool
}

// SchwabConfig holds configuration for the Schwab broker.
type SchwabConfig struct {
	TraderBase     string
	MarketDataBase string
	DryRun         bool
	HTTPClient     *http.Client
}

// SchwabBroker implements Broker against the Schwab Trader and Market
// Data APIs. The account hash is resolved once and cached; everything
// else is a stateless HTTP call.
type SchwabBroker struct {
	tokens     TokenSource
	client     *http.Client
	traderBase string
	mdBase     string
	dryRun     bool
	logger     zerolog.Logger

	mu          sync.Mutex
	accountHash string
}

var _ Broker = (*SchwabBroker)(nil)

// NewSchwabBroker creates a new Schwab broker instance.
func NewSchwabBroker(tokens TokenSource, cfg SchwabConfig, logger zerolog.Logger) *SchwabBroker {
	if cfg.TraderBase == "" {
		cfg.TraderBase = defaultTraderBase
	}
	if cfg.MarketDataBase == "" {
		cfg.MarketDataBase = defaultMarketDataBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &SchwabBroker{
		tokens:     tokens,
		client:     client,
		traderBase: cfg.TraderBase,
		mdBase:     cfg.MarketDataBase,
		dryRun:     cfg.DryRun,
		logger:     logger.With().Str("component", "schwab").Logger(),
	}
}

// IsAuthenticated reports whether a usable token is on hand.
func (s *SchwabBroker) IsAuthenticated() bool {
	return s.tokens.IsAuthenticated()
}

type priceHistoryCandle struct {
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
	Datetime int64   `json:"datetime"`
}

type priceHistoryResponse struct {
	Symbol  string               `json:"symbol"`
	Empty   bool                 `json:"empty"`
	Candles []priceHistoryCandle `json:"candles"`
}

// GetCandles fetches regular-session candles from the price history
// endpoint. Candle timestamps mark the interval open.
func (s *SchwabBroker) GetCandles(ctx context.Context, req CandleRequest) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("periodType", "day")
	q.Set("period", "1")
	q.Set("frequencyType", "minute")
	q.Set("frequency", strconv.Itoa(req.Frequency))
	q.Set("needExtendedHoursData", "false")
	q.Set("startDate", strconv.FormatInt(req.Start.UnixMilli(), 10))
	q.Set("endDate", strconv.FormatInt(req.End.UnixMilli(), 10))

	var resp priceHistoryResponse
	if err := s.doJSON(ctx, http.MethodGet, s.mdBase+"/pricehistory?"+q.Encode(), nil, &resp); err != nil {
		return nil, apperrors.NewDataError("candles", req.Symbol, "price history request failed", err)
	}
	if resp.Empty || len(resp.Candles) == 0 {
		return nil, apperrors.NewDataError("candles", req.Symbol, "price history empty", apperrors.ErrDataUnavailable)
	}

	candles := make([]models.Candle, 0, len(resp.Candles))
	for _, c := range resp.Candles {
		candles = append(candles, models.Candle{
			Timestamp: time.UnixMilli(c.Datetime),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	return candles, nil
}

// GetIndexClose returns the daily close for the trading date.
func (s *SchwabBroker) GetIndexClose(ctx context.Context, symbol string, date time.Time) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("periodType", "month")
	q.Set("period", "1")
	q.Set("frequencyType", "daily")
	q.Set("frequency", "1")

	var resp priceHistoryResponse
	if err := s.doJSON(ctx, http.MethodGet, s.mdBase+"/pricehistory?"+q.Encode(), nil, &resp); err != nil {
		return 0, apperrors.NewDataError("close", symbol, "price history request failed", err)
	}

	y, m, d := date.Date()
	for i := len(resp.Candles) - 1; i >= 0; i-- {
		cy, cm, cd := time.UnixMilli(resp.Candles[i].Datetime).In(date.Location()).Date()
		if cy == y && cm == m && cd == d {
			return resp.Candles[i].Close, nil
		}
	}
	return 0, apperrors.NewDataError("close", symbol,
		fmt.Sprintf("no daily candle for %s", date.Format("2006-01-02")), apperrors.ErrDataUnavailable)
}

type quoteEnvelope struct {
	Quote struct {
		BidPrice float64 `json:"bidPrice"`
		AskPrice float64 `json:"askPrice"`
	} `json:"quote"`
}

// GetOptionQuotes fetches both legs with one batch quotes call.
func (s *SchwabBroker) GetOptionQuotes(ctx context.Context, shortSymbol, longSymbol string) (models.SpreadQuote, error) {
	q := url.Values{}
	q.Set("symbols", shortSymbol+","+longSymbol)
	q.Set("fields", "quote")

	var resp map[string]quoteEnvelope
	if err := s.doJSON(ctx, http.MethodGet, s.mdBase+"/quotes?"+q.Encode(), nil, &resp); err != nil {
		return models.SpreadQuote{}, err
	}

	// A symbol missing from the response is a zero quote, not an
	// error; the credit check skips that poll.
	sq := models.SpreadQuote{At: time.Now()}
	if env, ok := resp[shortSymbol]; ok {
		sq.Short = models.OptionQuote{Bid: env.Quote.BidPrice, Ask: env.Quote.AskPrice}
	}
	if env, ok := resp[longSymbol]; ok {
		sq.Long = models.OptionQuote{Bid: env.Quote.BidPrice, Ask: env.Quote.AskPrice}
	}
	return sq, nil
}

type accountNumberPair struct {
	AccountNumber string `json:"accountNumber"`
	HashValue     string `json:"hashValue"`
}

type accountDetail struct {
	SecuritiesAccount struct {
		CurrentBalances struct {
			LiquidationValue float64 `json:"liquidationValue"`
		} `json:"currentBalances"`
	} `json:"securitiesAccount"`
}

// GetAccountEquity returns the account's liquidation value.
func (s *SchwabBroker) GetAccountEquity(ctx context.Context) (float64, error) {
	hash, err := s.accountHashValue(ctx)
	if err != nil {
		return 0, err
	}

	var detail accountDetail
	if err := s.doJSON(ctx, http.MethodGet, s.traderBase+"/accounts/"+hash, nil, &detail); err != nil {
		return 0, err
	}
	return detail.SecuritiesAccount.CurrentBalances.LiquidationValue, nil
}

func (s *SchwabBroker) accountHashValue(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountHash != "" {
		return s.accountHash, nil
	}

	var pairs []accountNumberPair
	if err := s.doJSON(ctx, http.MethodGet, s.traderBase+"/accounts/accountNumbers", nil, &pairs); err != nil {
		return "", err
	}
	if len(pairs) == 0 {
		return "", apperrors.NewBrokerError("NO_ACCOUNT", "no linked accounts", nil)
	}

	s.accountHash = pairs[0].HashValue
	return s.accountHash, nil
}

// spreadOrderPayload is the Schwab order body for a two-leg vertical.
type spreadOrderPayload struct {
	OrderType          string           `json:"orderType"`
	Session            string           `json:"session"`
	Price              string           `json:"price"`
	Duration           string           `json:"duration"`
	OrderStrategyType  string           `json:"orderStrategyType"`
	OrderLegCollection []orderLegDetail `json:"orderLegCollection"`
}

type orderLegDetail struct {
	Instruction string          `json:"instruction"`
	Quantity    int             `json:"quantity"`
	Instrument  orderInstrument `json:"instrument"`
}

type orderInstrument struct {
	Symbol    string `json:"symbol"`
	AssetType string `json:"assetType"`
}

// PlaceSpreadOrder submits a NET_CREDIT day-limit order selling the
// short leg and buying the long leg. In dry-run mode the order is
// logged and acknowledged locally without touching the API.
func (s *SchwabBroker) PlaceSpreadOrder(ctx context.Context, order *models.SpreadOrder) (*models.OrderResult, error) {
	root := order.OptionRoot
	if root == "" {
		root = "SPXW"
	}
	shortSym, longSym := SpreadSymbols(root, order.Expiry, order.Spread)

	payload := spreadOrderPayload{
		OrderType:         "NET_CREDIT",
		Session:           "NORMAL",
		Price:             fmt.Sprintf("%.2f", order.LimitPrice),
		Duration:          "DAY",
		OrderStrategyType: "SINGLE",
		OrderLegCollection: []orderLegDetail{
			{Instruction: "SELL_TO_OPEN", Quantity: order.Quantity, Instrument: orderInstrument{Symbol: shortSym, AssetType: "OPTION"}},
			{Instruction: "BUY_TO_OPEN", Quantity: order.Quantity, Instrument: orderInstrument{Symbol: longSym, AssetType: "OPTION"}},
		},
	}

	if s.dryRun {
		s.logger.Info().
			Str("short", shortSym).
			Str("long", longSym).
			Int("quantity", order.Quantity).
			Str("price", payload.Price).
			Msg("dry run, order not sent")
		return &models.OrderResult{
			OrderID:  dryRunOrderID,
			Status:   "DRY_RUN",
			DryRun:   true,
			PlacedAt: time.Now(),
		}, nil
	}

	hash, err := s.accountHashValue(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding order: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, s.traderBase+"/accounts/"+hash+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperrors.NewOrderError("", shortSym,
			strings.TrimSpace(string(respBody)), apperrors.ErrOrderRejected)
	}

	// The order ID arrives as the last segment of the Location header.
	orderID := "UNKNOWN"
	if loc := resp.Header.Get("Location"); loc != "" {
		parts := strings.Split(strings.TrimRight(loc, "/"), "/")
		orderID = parts[len(parts)-1]
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("short", shortSym).
		Str("long", longSym).
		Int("quantity", order.Quantity).
		Str("price", payload.Price).
		Msg("spread order accepted")

	return &models.OrderResult{
		OrderID:  orderID,
		Status:   "ACCEPTED",
		PlacedAt: time.Now(),
	}, nil
}

func (s *SchwabBroker) do(ctx context.Context, method, rawURL string, body io.Reader) (*http.Response, error) {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrConnectionFailed, "%s %s: %v", method, rawURL, err)
	}
	return resp, nil
}

func (s *SchwabBroker) doJSON(ctx context.Context, method, rawURL string, body io.Reader, out interface{}) error {
	start := time.Now()
	resp, err := s.do(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	s.logger.Debug().
		Str("method", method).
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api call")

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrNotAuthenticated
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.NewBrokerError(
			fmt.Sprintf("HTTP_%d", resp.StatusCode),
			strings.TrimSpace(string(respBody)), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
