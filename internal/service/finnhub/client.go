package finnhub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"FinScan/internal/domain/models"
	drepo "FinScan/internal/domain/repository"
	xhttp "FinScan/pkg/http"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const dateLayout = "2006-01-02"

// Client implements MarketData backed by the Finnhub REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics drepo.Metrics
}

// Option configures Client.
type Option func(*options)

type options struct {
	timeout     time.Duration
	ratePerSec  float64
	burst       int
	maxRequests uint32
	interval    time.Duration
	openTimeout time.Duration
	tripAfter   uint32
	httpClient  *http.Client
	metrics     drepo.Metrics
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRateLimit throttles outgoing calls to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.ratePerSec = rps
		o.burst = burst
	}
}

// WithBreaker configures the circuit breaker around the API.
func WithBreaker(maxRequests uint32, interval, openTimeout time.Duration, consecutiveFailures uint32) Option {
	return func(o *options) {
		o.maxRequests = maxRequests
		o.interval = interval
		o.openTimeout = openTimeout
		o.tripAfter = consecutiveFailures
	}
}

// WithHTTPClient overrides the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithMetrics records call latency and errors.
func WithMetrics(m drepo.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a Finnhub REST client.
func New(apiKey, baseURL string, opts ...Option) *Client {
	o := &options{
		timeout:     10 * time.Second,
		ratePerSec:  25,
		burst:       5,
		maxRequests: 3,
		interval:    time.Minute,
		openTimeout: 30 * time.Second,
		tripAfter:   10,
	}
	for _, opt := range opts {
		opt(o)
	}

	httpOpts := []xhttp.ClientOption{xhttp.WithTimeout(o.timeout)}
	if o.httpClient != nil {
		httpOpts = append(httpOpts, xhttp.WithHTTPClient(o.httpClient))
	}

	tripAfter := o.tripAfter
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "finnhub",
		MaxRequests: o.maxRequests,
		Interval:    o.interval,
		Timeout:     o.openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up or an unknown symbol says nothing about provider health
			var se *xhttp.StatusError
			if errors.As(err, &se) && se.Code == http.StatusNotFound {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    xhttp.NewClient(httpOpts...),
		limiter: rate.NewLimiter(rate.Limit(o.ratePerSec), o.burst),
		breaker: breaker,
		metrics: o.metrics,
	}
}

type quoteResponse struct {
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	DP float64 `json:"dp"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	O  float64 `json:"o"`
	PC float64 `json:"pc"`
	T  int64   `json:"t"`
}

// Quote returns the latest quote.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	var r quoteResponse
	if err := c.get(ctx, "quote", "/quote", map[string][]string{"symbol": {symbol}}, &r); err != nil {
		return nil, fmt.Errorf("finnhub quote %s: %w", symbol, err)
	}
	return &models.Quote{
		Symbol:        symbol,
		Current:       r.C,
		Change:        r.D,
		PercentChange: r.DP,
		High:          r.H,
		Low:           r.L,
		Open:          r.O,
		PrevClose:     r.PC,
		Timestamp:     r.T,
	}, nil
}

type profileResponse struct {
	Name             string  `json:"name"`
	Ticker           string  `json:"ticker"`
	Exchange         string  `json:"exchange"`
	Country          string  `json:"country"`
	FinnhubIndustry  string  `json:"finnhubIndustry"`
	ShareOutstanding float64 `json:"shareOutstanding"` // millions
}

// Profile returns company profile data. Shares outstanding are converted from millions.
func (c *Client) Profile(ctx context.Context, symbol string) (*models.Profile, error) {
	var r profileResponse
	if err := c.get(ctx, "profile", "/stock/profile2", map[string][]string{"symbol": {symbol}}, &r); err != nil {
		return nil, fmt.Errorf("finnhub profile %s: %w", symbol, err)
	}
	return &models.Profile{
		Symbol:    symbol,
		Name:      r.Name,
		Exchange:  r.Exchange,
		Country:   r.Country,
		Industry:  r.FinnhubIndustry,
		SharesOut: r.ShareOutstanding * 1e6,
	}, nil
}

type newsItem struct {
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
}

// News returns company headlines between from and to, newest first.
func (c *Client) News(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsItem, error) {
	var r []newsItem
	q := map[string][]string{
		"symbol": {symbol},
		"from":   {from.UTC().Format(dateLayout)},
		"to":     {to.UTC().Format(dateLayout)},
	}
	if err := c.get(ctx, "news", "/company-news", q, &r); err != nil {
		return nil, fmt.Errorf("finnhub news %s: %w", symbol, err)
	}
	out := make([]models.NewsItem, 0, len(r))
	for _, n := range r {
		out = append(out, models.NewsItem{
			Headline: n.Headline,
			Source:   n.Source,
			URL:      n.URL,
			Time:     time.Unix(n.Datetime, 0).UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out, nil
}

type candleResponse struct {
	C []float64 `json:"c"`
	H []float64 `json:"h"`
	L []float64 `json:"l"`
	O []float64 `json:"o"`
	V []float64 `json:"v"`
	T []int64   `json:"t"`
	S string    `json:"s"`
}

// Candles returns OHLCV bars in ascending time order. "no_data" yields an empty slice.
func (c *Client) Candles(ctx context.Context, symbol string, res models.Resolution, from, to time.Time) ([]models.Bar, error) {
	var r candleResponse
	q := map[string][]string{
		"symbol":     {symbol},
		"resolution": {string(res)},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
	}
	if err := c.get(ctx, "candles", "/stock/candle", q, &r); err != nil {
		return nil, fmt.Errorf("finnhub candles %s: %w", symbol, err)
	}
	if r.S != "ok" {
		return nil, nil
	}
	n := len(r.T)
	if len(r.C) != n || len(r.V) != n || len(r.O) != n || len(r.H) != n || len(r.L) != n {
		return nil, fmt.Errorf("finnhub candles %s: ragged arrays", symbol)
	}
	bars := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = models.Bar{
			Time:   time.Unix(r.T[i], 0).UTC(),
			Open:   r.O[i],
			High:   r.H[i],
			Low:    r.L[i],
			Close:  r.C[i],
			Volume: r.V[i],
		}
	}
	return bars, nil
}

// State reports the breaker state ("closed", "half-open", "open").
func (c *Client) State() string { return c.breaker.State().String() }

func (c *Client) get(ctx context.Context, op, path string, query map[string][]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL + path,
			Headers:     map[string]string{"X-Finnhub-Token": c.apiKey},
			QueryParams: query,
		}, dest)
	})
	if c.metrics != nil {
		c.metrics.RecordLatency("finnhub_"+op, time.Since(start).Seconds())
	}
	if err == nil {
		return nil
	}

	if c.metrics != nil {
		c.metrics.RecordError("finnhub_" + op)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", models.ErrRateLimited, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", models.ErrNotFound, err)
		}
	}
	return err
}

var _ drepo.MarketData = (*Client)(nil)
