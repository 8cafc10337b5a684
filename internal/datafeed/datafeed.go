// Package datafeed downloads one trading day of stock bars and option
// chains from the market data vendors.
package datafeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/logging"
	"spread-backtester/internal/models"
	"spread-backtester/internal/resilience"
	"spread-backtester/internal/security"
)

// ErrRequestRejected marks vendor responses that retrying will not fix.
var ErrRequestRejected = errors.New("request rejected by vendor")

// ChainFetcher returns the option chain of one minute. A nil slice with a
// nil error means the vendor has no data for that minute.
type ChainFetcher interface {
	Chain(ctx context.Context, minute time.Time) ([]models.StrikeRow, error)
}

// CandleFetcher returns one-minute stock bars in [from, to].
type CandleFetcher interface {
	Intraday(ctx context.Context, from, to time.Time) ([]models.Candle, error)
}

// httpGetter performs cached GET requests for the vendor clients. A
// circuit breaker stops requests after repeated transport or server
// failures.
type httpGetter struct {
	vendor  string
	client  *http.Client
	cache   Cache
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

func newHTTPGetter(vendor string, timeout time.Duration, cache Cache, logger zerolog.Logger) httpGetter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return httpGetter{
		vendor:  vendor,
		client:  &http.Client{Timeout: timeout},
		cache:   cache,
		breaker: resilience.NewCircuitBreaker(vendor, resilience.DefaultCircuitBreakerConfig()),
		logger:  logger,
	}
}

// get fetches url. found is false on 404. Successful bodies are cached
// under cacheKey when a cache is configured.
func (g httpGetter) get(ctx context.Context, url, cacheKey string) (body []byte, found bool, err error) {
	if g.cache != nil {
		if data, ok, err := g.cache.Get(ctx, cacheKey); err != nil {
			g.logger.Warn().Err(err).Str("key", cacheKey).Msg("Cache read failed")
		} else if ok {
			return data, true, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating %s request: %w", g.vendor, err)
	}
	req.Header.Set("User-Agent", "spreadbt/1.0")

	if err := g.breaker.Allow(); err != nil {
		return nil, false, apperrors.NewFeedError(g.vendor, 0, "too many failures", err)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.breaker.Record(true)
		// url.Error carries the full URL, token included.
		err = apperrors.NewFeedError(g.vendor, 0, "request failed", fmt.Errorf("%w: %s", apperrors.ErrFeedUnavailable, security.Redact(err.Error())))
		logging.LogAPICall(g.logger, http.MethodGet, req.URL.Path, time.Since(start), err)
		return nil, false, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	logging.LogAPICall(g.logger, http.MethodGet, req.URL.Path, time.Since(start), err)
	if err != nil {
		g.breaker.Record(true)
		return nil, false, apperrors.NewFeedError(g.vendor, resp.StatusCode, "reading body", fmt.Errorf("%w: %s", apperrors.ErrFeedUnavailable, security.Redact(err.Error())))
	}

	unavailable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	g.breaker.Record(unavailable)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case unavailable:
		return nil, false, apperrors.NewFeedError(g.vendor, resp.StatusCode, snippet(body), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, false, apperrors.NewFeedError(g.vendor, resp.StatusCode, snippet(body), ErrRequestRejected)
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, cacheKey, body); err != nil {
			g.logger.Warn().Err(err).Str("key", cacheKey).Msg("Cache write failed")
		}
	}
	return body, true, nil
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
