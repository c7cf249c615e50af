// Package bybit fetches market data from the Bybit v5 public API. All
// requests run through a per-route rate limiter and a circuit breaker;
// kline responses are cached under a short TTL.
package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantonic/setforge/internal/cache"
	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/net/breaker"
	"github.com/quantonic/setforge/internal/net/ratelimit"
	"github.com/quantonic/setforge/internal/telemetry"
)

// Route names used for rate limiting and metrics labels.
const (
	routeKline        = "kline"
	routeOpenInterest = "open-interest"
	routeFunding      = "funding"
	routeAccountRatio = "account-ratio"
)

// intervalCodes maps engine timeframes to Bybit kline interval codes.
var intervalCodes = map[domain.Timeframe]string{
	domain.TF1m:  "1",
	domain.TF5m:  "5",
	domain.TF15m: "15",
	domain.TF1h:  "60",
	domain.TF4h:  "240",
	domain.TF1d:  "D",
}

// Options configures the REST client.
type Options struct {
	BaseURL    string
	Category   string
	Timeout    time.Duration
	MaxRetries int
}

// Client is the Bybit v5 REST client.
type Client struct {
	opts    Options
	httpc   *http.Client
	limiter *ratelimit.Limiter
	brk     *breaker.Breaker
	candles *cache.Candles
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

// NewClient wires the client with its protective middleware. candles and
// metrics may be nil; the client then skips caching and recording.
func NewClient(opts Options, limiter *ratelimit.Limiter, brk *breaker.Breaker, candles *cache.Candles, metrics *telemetry.Metrics, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.bybit.com"
	}
	if opts.Category == "" {
		opts.Category = "linear"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		opts:    opts,
		httpc:   &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		brk:     brk,
		candles: candles,
		metrics: metrics,
		log:     log.With().Str("provider", "bybit").Logger(),
	}
}

// envelope is the common v5 response wrapper.
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// APIError is a non-zero retCode from the exchange.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit: retCode %d: %s", e.Code, e.Message)
}

// get performs one rate-limited, breaker-guarded GET with retries on
// transport errors and 5xx responses.
func (c *Client) get(ctx context.Context, route, path string, q url.Values, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, route); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	var timer *telemetry.RequestTimer
	if c.metrics != nil {
		timer = c.metrics.StartRequest(route)
	}

	call := func() error {
		var lastErr error
		for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(attempt) * 500 * time.Millisecond
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
			}
			lastErr = c.doOnce(ctx, path, q, out)
			if lastErr == nil {
				return nil
			}
			if !retryable(lastErr) {
				return lastErr
			}
			c.log.Debug().Err(lastErr).Str("route", route).Int("attempt", attempt+1).Msg("retrying request")
		}
		return lastErr
	}

	var err error
	if c.brk != nil {
		err = c.brk.Do(call)
	} else {
		err = call()
	}

	if timer != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		timer.Done(status)
	}
	return err
}

// httpError marks a non-2xx status; 5xx and 429 are retryable.
type httpError struct{ status int }

func (e *httpError) Error() string { return fmt.Sprintf("bybit: HTTP %d", e.status) }

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var he *httpError
	if errors.As(err, &he) {
		return he.status >= 500 || he.status == http.StatusTooManyRequests
	}
	// Everything else is transport-level and worth a retry.
	return true
}

func (c *Client) doOnce(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.opts.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &httpError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("bybit: decode envelope: %w", err)
	}
	if env.RetCode != 0 {
		return &APIError{Code: env.RetCode, Message: env.RetMsg}
	}
	return json.Unmarshal(env.Result, out)
}

type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

// Klines fetches up to limit candles and returns them as a validated
// ascending series. The forming candle is included; callers drop it
// before evaluation.
func (c *Client) Klines(ctx context.Context, symbol string, tf domain.Timeframe, limit int) (*domain.Series, error) {
	code, ok := intervalCodes[tf]
	if !ok {
		return nil, fmt.Errorf("bybit: unsupported interval %s", tf)
	}

	key := cache.Key(symbol, tf, limit)
	if c.candles != nil {
		if cs, hit := c.candles.Get(ctx, key); hit {
			if c.metrics != nil {
				c.metrics.CacheHits.WithLabelValues(routeKline).Inc()
			}
			return domain.NewSeries(symbol, tf, cs)
		}
		if c.metrics != nil {
			c.metrics.CacheMisses.WithLabelValues(routeKline).Inc()
		}
	}

	q := url.Values{}
	q.Set("category", c.opts.Category)
	q.Set("symbol", symbol)
	q.Set("interval", code)
	q.Set("limit", strconv.Itoa(limit))

	var res klineResult
	if err := c.get(ctx, routeKline, "/v5/market/kline", q, &res); err != nil {
		return nil, err
	}

	candles, err := parseKlines(res.List)
	if err != nil {
		return nil, err
	}
	series, err := domain.NewSeries(symbol, tf, candles)
	if err != nil {
		return nil, err
	}
	if c.candles != nil {
		c.candles.Put(ctx, key, candles)
	}
	return series, nil
}

// parseKlines converts Bybit's newest-first string rows into ascending
// candles. Row layout: start, open, high, low, close, volume, turnover.
func parseKlines(rows [][]string) ([]domain.Candle, error) {
	out := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("bybit: short kline row (%d fields)", len(row))
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bybit: kline timestamp %q: %w", row[0], err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			vals[i], err = strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("bybit: kline field %q: %w", row[i+1], err)
			}
		}
		out = append(out, domain.Candle{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// OpenInterest is one open-interest reading.
type OpenInterest struct {
	Value     float64
	Timestamp time.Time
}

type openInterestResult struct {
	List []struct {
		OpenInterest string `json:"openInterest"`
		Timestamp    string `json:"timestamp"`
	} `json:"list"`
}

// LatestOpenInterest returns the most recent open-interest figure.
func (c *Client) LatestOpenInterest(ctx context.Context, symbol string) (OpenInterest, error) {
	q := url.Values{}
	q.Set("category", c.opts.Category)
	q.Set("symbol", symbol)
	q.Set("intervalTime", "1h")
	q.Set("limit", "1")

	var res openInterestResult
	if err := c.get(ctx, routeOpenInterest, "/v5/market/open-interest", q, &res); err != nil {
		return OpenInterest{}, err
	}
	if len(res.List) == 0 {
		return OpenInterest{}, fmt.Errorf("bybit: no open interest for %s", symbol)
	}
	v, err := strconv.ParseFloat(res.List[0].OpenInterest, 64)
	if err != nil {
		return OpenInterest{}, fmt.Errorf("bybit: open interest %q: %w", res.List[0].OpenInterest, err)
	}
	ms, err := strconv.ParseInt(res.List[0].Timestamp, 10, 64)
	if err != nil {
		return OpenInterest{}, fmt.Errorf("bybit: open interest timestamp %q: %w", res.List[0].Timestamp, err)
	}
	return OpenInterest{Value: v, Timestamp: time.UnixMilli(ms).UTC()}, nil
}

type fundingResult struct {
	List []struct {
		FundingRate          string `json:"fundingRate"`
		FundingRateTimestamp string `json:"fundingRateTimestamp"`
	} `json:"list"`
}

// LatestFundingRate returns the most recent settled funding rate.
func (c *Client) LatestFundingRate(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("category", c.opts.Category)
	q.Set("symbol", symbol)
	q.Set("limit", "1")

	var res fundingResult
	if err := c.get(ctx, routeFunding, "/v5/market/funding/history", q, &res); err != nil {
		return 0, err
	}
	if len(res.List) == 0 {
		return 0, fmt.Errorf("bybit: no funding history for %s", symbol)
	}
	rate, err := strconv.ParseFloat(res.List[0].FundingRate, 64)
	if err != nil {
		return 0, fmt.Errorf("bybit: funding rate %q: %w", res.List[0].FundingRate, err)
	}
	return rate, nil
}

// LongShortRatio is buy vs sell account positioning.
type LongShortRatio struct {
	Buy  float64
	Sell float64
}

type accountRatioResult struct {
	List []struct {
		BuyRatio  string `json:"buyRatio"`
		SellRatio string `json:"sellRatio"`
	} `json:"list"`
}

// LatestLongShortRatio returns the most recent account long/short split.
func (c *Client) LatestLongShortRatio(ctx context.Context, symbol string) (LongShortRatio, error) {
	q := url.Values{}
	q.Set("category", c.opts.Category)
	q.Set("symbol", symbol)
	q.Set("period", "1h")
	q.Set("limit", "1")

	var res accountRatioResult
	if err := c.get(ctx, routeAccountRatio, "/v5/market/account-ratio", q, &res); err != nil {
		return LongShortRatio{}, err
	}
	if len(res.List) == 0 {
		return LongShortRatio{}, fmt.Errorf("bybit: no account ratio for %s", symbol)
	}
	buy, err := strconv.ParseFloat(res.List[0].BuyRatio, 64)
	if err != nil {
		return LongShortRatio{}, fmt.Errorf("bybit: buy ratio %q: %w", res.List[0].BuyRatio, err)
	}
	sell, err := strconv.ParseFloat(res.List[0].SellRatio, 64)
	if err != nil {
		return LongShortRatio{}, fmt.Errorf("bybit: sell ratio %q: %w", res.List[0].SellRatio, err)
	}
	return LongShortRatio{Buy: buy, Sell: sell}, nil
}

// Market fetches derivatives context for a symbol. Each field is best
// effort: a failed fetch leaves the zero value and is reported through
// the joined error, so callers can use whatever arrived.
func (c *Client) Market(ctx context.Context, symbol string) (domain.MarketSnapshot, error) {
	snap := domain.MarketSnapshot{Symbol: symbol, FetchedAt: time.Now().UTC()}
	var errs []error

	if oi, err := c.LatestOpenInterest(ctx, symbol); err != nil {
		errs = append(errs, err)
	} else {
		snap.OpenInterest = oi.Value
	}
	if rate, err := c.LatestFundingRate(ctx, symbol); err != nil {
		errs = append(errs, err)
	} else {
		snap.FundingRate = rate
	}
	if lsr, err := c.LatestLongShortRatio(ctx, symbol); err != nil {
		errs = append(errs, err)
	} else if lsr.Sell > 0 {
		snap.LongShortRatio = lsr.Buy / lsr.Sell
	}
	return snap, errors.Join(errs...)
}

// BreakerState reports the circuit breaker state for health endpoints.
func (c *Client) BreakerState() string {
	if c.brk == nil {
		return "disabled"
	}
	return c.brk.State()
}

// Series implements the screener's data source.
func (c *Client) Series(ctx context.Context, symbol string, tf domain.Timeframe, bars int) (*domain.Series, error) {
	return c.Klines(ctx, symbol, tf, bars)
}
