// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"spread-backtester/internal/models"
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
		FilePath:   filepath.Join(home, ".config", "spreadbt", "logs", "spreadbt.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
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
	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
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

// WithTradeDate adds the simulated trading day to the logger context.
func WithTradeDate(logger zerolog.Logger, date time.Time) zerolog.Logger {
	return logger.With().Str("trade_date", date.Format("2006-01-02")).Logger()
}

// WithRunID adds a backtest run identifier to the logger context.
func WithRunID(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogTradeOpened logs a new credit spread.
func LogTradeOpened(logger zerolog.Logger, t models.OpenTrade) {
	logger.Info().
		Str("event", "trade_opened").
		Time("entry_time", t.EntryTime).
		Str("direction", t.Direction.String()).
		Float64("leg1_strike", t.Leg1Strike).
		Float64("leg2_strike", t.Leg2Strike).
		Float64("unit_spread", t.EntryUnitSpread).
		Int("contracts", t.Contracts).
		Float64("stoploss", t.Stoploss).
		Msg("Trade opened")
}

// LogTradeClosed logs the exit of a credit spread.
func LogTradeClosed(logger zerolog.Logger, t models.ClosedTrade) {
	logger.Info().
		Str("event", "trade_closed").
		Time("exit_time", t.ExitTime).
		Str("direction", t.Direction.String()).
		Str("reason", string(t.ExitReason)).
		Float64("exit_unit_spread", t.ExitUnitSpread).
		Float64("pnl", t.PnL).
		Msg("Trade closed")
}

// LogRejection logs an entry attempt that failed validation.
func LogRejection(logger zerolog.Logger, at time.Time, direction models.Direction, err error) {
	logger.Debug().
		Str("event", "entry_rejected").
		Time("at", at).
		Str("direction", direction.String()).
		Err(err).
		Msg("Entry rejected")
}

// LogAPICall logs a data vendor call.
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
