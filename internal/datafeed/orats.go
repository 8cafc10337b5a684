package datafeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/pkg/utils"
)

// DefaultORATSBaseURL is the production ORATS API.
const DefaultORATSBaseURL = "https://api.orats.io"

// ORATSConfig configures the one-minute strike chain client.
type ORATSConfig struct {
	BaseURL  string
	Token    string
	Ticker   string
	DTE      int
	Timeout  time.Duration
	Location *time.Location
}

// ORATSClient downloads historical one-minute option chains.
type ORATSClient struct {
	cfg  ORATSConfig
	http httpGetter
}

// oratsRow is one strike of the vendor CSV. Columns not listed are ignored.
type oratsRow struct {
	Ticker           string  `csv:"ticker"`
	DTE              int     `csv:"dte"`
	Strike           float64 `csv:"strike"`
	StockPrice       float64 `csv:"stockPrice"`
	Delta            float64 `csv:"delta"`
	CallMidIV        float64 `csv:"callMidIv"`
	PutMidIV         float64 `csv:"putMidIv"`
	CallOpenInterest int64   `csv:"callOpenInterest"`
	CallVolume       int64   `csv:"callVolume"`
	CallBidSize      int64   `csv:"callBidSize"`
	CallAskSize      int64   `csv:"callAskSize"`
	CallBidPrice     float64 `csv:"callBidPrice"`
	CallAskPrice     float64 `csv:"callAskPrice"`
	PutOpenInterest  int64   `csv:"putOpenInterest"`
	PutVolume        int64   `csv:"putVolume"`
	PutBidSize       int64   `csv:"putBidSize"`
	PutAskSize       int64   `csv:"putAskSize"`
	PutBidPrice      float64 `csv:"putBidPrice"`
	PutAskPrice      float64 `csv:"putAskPrice"`
}

// NewORATSClient returns a client for cfg. The token is required.
func NewORATSClient(cfg ORATSConfig, cache Cache, logger zerolog.Logger) (*ORATSClient, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("orats: %w", apperrors.ErrMissingToken)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultORATSBaseURL
	}
	if cfg.Ticker == "" {
		cfg.Ticker = "SPY"
	}
	if cfg.DTE <= 0 {
		cfg.DTE = 1
	}
	if cfg.Location == nil {
		cfg.Location = utils.NewYorkLocation
	}
	return &ORATSClient{
		cfg:  cfg,
		http: newHTTPGetter("orats", cfg.Timeout, cache, logger.With().Str("vendor", "orats").Logger()),
	}, nil
}

// Chain returns the strikes of the configured expiry at minute, in the
// vendor's order. Only strikes whose days to expiry equal the configured
// DTE are kept. The put delta is derived from the call delta.
func (c *ORATSClient) Chain(ctx context.Context, minute time.Time) ([]models.StrikeRow, error) {
	if minute.Second() != 0 || minute.Nanosecond() != 0 {
		return nil, fmt.Errorf("orats chain at %s: %w", minute.Format(time.RFC3339Nano), apperrors.ErrMalformedTime)
	}
	minute = minute.In(c.cfg.Location)
	tradeDate := minute.Format("200601021504")

	q := url.Values{}
	q.Set("token", c.cfg.Token)
	q.Set("ticker", c.cfg.Ticker)
	q.Set("tradeDate", tradeDate)
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/datav2/historical/one-minute/strikes/chain?" + q.Encode()

	body, found, err := c.http.get(ctx, endpoint, fmt.Sprintf("orats:%s:%s", c.cfg.Ticker, tradeDate))
	if err != nil || !found {
		return nil, err
	}

	var records []oratsRow
	if err := gocsv.UnmarshalBytes(body, &records); err != nil {
		return nil, apperrors.NewFeedError("orats", 200, "malformed chain csv", fmt.Errorf("%w: %v", ErrRequestRejected, err))
	}

	rows := make([]models.StrikeRow, 0, len(records))
	for _, r := range records {
		if r.DTE != c.cfg.DTE {
			continue
		}
		rows = append(rows, models.StrikeRow{
			Time:       minute,
			Strike:     r.Strike,
			StockPrice: r.StockPrice,
			Call: models.SideQuote{
				MidIV:        r.CallMidIV,
				OpenInterest: r.CallOpenInterest,
				Volume:       r.CallVolume,
				BidSize:      r.CallBidSize,
				AskSize:      r.CallAskSize,
				BidPrice:     r.CallBidPrice,
				AskPrice:     r.CallAskPrice,
				Delta:        r.Delta,
			},
			Put: models.SideQuote{
				MidIV:        r.PutMidIV,
				OpenInterest: r.PutOpenInterest,
				Volume:       r.PutVolume,
				BidSize:      r.PutBidSize,
				AskSize:      r.PutAskSize,
				BidPrice:     r.PutBidPrice,
				AskPrice:     r.PutAskPrice,
				Delta:        r.Delta - 1,
			},
		})
	}
	return rows, nil
}
