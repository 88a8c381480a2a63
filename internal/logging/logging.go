// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"spx-orb-trader/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "orb-trader", "logs", "orb-trader.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer
	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		// Ensure log directory exists
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	// Create multi-writer
	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Create logger
	logger := zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// SetInfoLevel sets the global log level to info.
func SetInfoLevel() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithDay adds the trading date to the logger context.
func WithDay(logger zerolog.Logger, day time.Time) zerolog.Logger {
	return logger.With().Str("day", day.Format("2006-01-02")).Logger()
}

// WithOrderID adds an order ID to the logger context.
func WithOrderID(logger zerolog.Logger, orderID string) zerolog.Logger {
	return logger.With().Str("order_id", orderID).Logger()
}

// WithState adds the engine state to the logger context.
func WithState(logger zerolog.Logger, state models.DayState) zerolog.Logger {
	return logger.With().Str("state", string(state)).Logger()
}

// LogTransition logs a state machine transition.
func LogTransition(logger zerolog.Logger, from, to models.DayState, reason string) {
	logger.Info().
		Str("event", "transition").
		Str("from", string(from)).
		Str("to", string(to)).
		Str("reason", reason).
		Msg("State transition")
}

// LogDecision logs a setup trigger.
func LogDecision(logger zerolog.Logger, setup models.SetupType, spread models.Spread, ref float64) {
	logger.Info().
		Str("event", "decision").
		Str("setup", string(setup)).
		Str("direction", setup.Direction()).
		Str("spread_type", string(spread.Type)).
		Float64("short_strike", spread.ShortStrike).
		Float64("long_strike", spread.LongStrike).
		Float64("reference_price", ref).
		Msg("Setup triggered")
}

// LogOrder logs an order event.
func LogOrder(logger zerolog.Logger, orderID string, spread models.Spread, qty int, limit float64, status string) {
	logger.Info().
		Str("event", "order").
		Str("order_id", orderID).
		Str("spread_type", string(spread.Type)).
		Float64("short_strike", spread.ShortStrike).
		Float64("long_strike", spread.LongStrike).
		Int("quantity", qty).
		Float64("limit_price", limit).
		Str("status", status).
		Msg("Order update")
}

// LogSettlement logs the end-of-day settlement outcome.
func LogSettlement(logger zerolog.Logger, closePrice, settlementValue, totalPnL float64) {
	logger.Info().
		Str("event", "settlement").
		Float64("close", closePrice).
		Float64("settlement_value", settlementValue).
		Float64("total_pnl", totalPnL).
		Msg("Day settled")
}

// LogAPICall logs an API call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
