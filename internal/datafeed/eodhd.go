package datafeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/pkg/utils"
)

// DefaultEODHDBaseURL is the production EODHD API.
const DefaultEODHDBaseURL = "https://eodhd.com/api"

// EODHDConfig configures the intraday bar client.
type EODHDConfig struct {
	BaseURL  string
	Token    string
	Symbol   string // exchange qualified, e.g. SPY.US
	Timeout  time.Duration
	Location *time.Location
}

// EODHDClient downloads one-minute intraday bars.
type EODHDClient struct {
	cfg  EODHDConfig
	http httpGetter
}

type eodhdBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// NewEODHDClient returns a client for cfg. The token is required.
func NewEODHDClient(cfg EODHDConfig, cache Cache, logger zerolog.Logger) (*EODHDClient, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("eodhd: %w", apperrors.ErrMissingToken)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEODHDBaseURL
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "SPY.US"
	}
	if cfg.Location == nil {
		cfg.Location = utils.NewYorkLocation
	}
	return &EODHDClient{
		cfg:  cfg,
		http: newHTTPGetter("eodhd", cfg.Timeout, cache, logger.With().Str("vendor", "eodhd").Logger()),
	}, nil
}

// Intraday returns the one-minute bars between from and to, both
// inclusive, with timestamps in the configured location.
func (c *EODHDClient) Intraday(ctx context.Context, from, to time.Time) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("api_token", c.cfg.Token)
	q.Set("interval", "1m")
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))
	q.Set("fmt", "json")
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/intraday/" + url.PathEscape(c.cfg.Symbol) + "?" + q.Encode()

	key := fmt.Sprintf("eodhd:%s:%d:%d", c.cfg.Symbol, from.Unix(), to.Unix())
	body, found, err := c.http.get(ctx, endpoint, key)
	if err != nil || !found {
		return nil, err
	}

	var bars []eodhdBar
	if err := json.Unmarshal(body, &bars); err != nil {
		return nil, apperrors.NewFeedError("eodhd", 200, "malformed intraday json", fmt.Errorf("%w: %v", ErrRequestRejected, err))
	}

	candles := make([]models.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, models.Candle{
			Timestamp: time.Unix(b.Timestamp, 0).In(c.cfg.Location),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    int64(b.Volume),
		})
	}
	return candles, nil
}
