// Package alphavantage provides the Alpha Vantage market data client:
// real-time underlying quotes, the 3-month treasury yield, and full
// realtime options chains with greeks.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/clientdata"
	"github.com/aristath/optionscan/internal/domain"
)

// DefaultDailyLimit is the free-tier request budget.
const DefaultDailyLimit = 25

// ErrRateLimitExceeded is returned when the daily request budget is
// exhausted.
type ErrRateLimitExceeded struct {
	Limit int
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("alpha vantage daily rate limit exceeded (%d requests)", e.Limit)
}

// Options configures the client. Zero values fall back to defaults.
type Options struct {
	APIKey       string
	BaseURL      string
	HTTPTimeout  time.Duration // quote and treasury requests
	ChainTimeout time.Duration // options chains are large
	QuoteTTL     time.Duration
	ChainTTL     time.Duration
	RateTTL      time.Duration
	DailyLimit   int // 0 uses DefaultDailyLimit, negative disables limiting
}

// Client calls the Alpha Vantage HTTP API with persistent cache-first
// behavior and a daily request budget.
type Client struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	chainClient *http.Client
	quoteTTL    time.Duration
	chainTTL    time.Duration
	rateTTL     time.Duration
	cacheRepo   *clientdata.Repository
	log         zerolog.Logger

	mu         sync.Mutex
	dailyLimit int
	usedToday  int
	resetDay   string
}

// NewClient creates a new Alpha Vantage client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(opts Options, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.alphavantage.co/query"
	}
	if opts.HTTPTimeout == 0 {
		opts.HTTPTimeout = 10 * time.Second
	}
	if opts.ChainTimeout == 0 {
		opts.ChainTimeout = 30 * time.Second
	}
	if opts.QuoteTTL == 0 {
		opts.QuoteTTL = clientdata.TTLQuote
	}
	if opts.ChainTTL == 0 {
		opts.ChainTTL = clientdata.TTLOptions
	}
	if opts.RateTTL == 0 {
		opts.RateTTL = clientdata.TTLTreasury
	}
	if opts.DailyLimit == 0 {
		opts.DailyLimit = DefaultDailyLimit
	}

	return &Client{
		apiKey:      opts.APIKey,
		baseURL:     opts.BaseURL,
		client:      &http.Client{Timeout: opts.HTTPTimeout},
		chainClient: &http.Client{Timeout: opts.ChainTimeout},
		quoteTTL:    opts.QuoteTTL,
		chainTTL:    opts.ChainTTL,
		rateTTL:     opts.RateTTL,
		cacheRepo:   cacheRepo,
		log:         log.With().Str("client", "alphavantage").Logger(),
		dailyLimit:  opts.DailyLimit,
		resetDay:    time.Now().Format("2006-01-02"),
	}
}

// checkRateLimit consumes one request from the daily budget. The
// counter rolls over at local midnight.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dailyLimit < 0 {
		return nil
	}

	today := time.Now().Format("2006-01-02")
	if today != c.resetDay {
		c.resetDay = today
		c.usedToday = 0
	}

	if c.usedToday >= c.dailyLimit {
		return ErrRateLimitExceeded{Limit: c.dailyLimit}
	}
	c.usedToday++
	return nil
}

// GetRemainingRequests returns the remaining daily request budget.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dailyLimit < 0 {
		return -1
	}
	today := time.Now().Format("2006-01-02")
	if today != c.resetDay {
		return c.dailyLimit
	}
	return c.dailyLimit - c.usedToday
}

// ResetDailyCounter resets the daily request counter.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usedToday = 0
	c.resetDay = time.Now().Format("2006-01-02")
}

// apiError captures the failure shapes Alpha Vantage returns with a
// 200 status.
type apiError struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (e *apiError) failed() bool {
	return e.ErrorMessage != "" || e.Note != "" || e.Information != ""
}

func (c *Client) get(ctx context.Context, client *http.Client, params url.Values) ([]byte, error) {
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.failed() {
		return nil, fmt.Errorf("API error: %s%s%s", apiErr.ErrorMessage, apiErr.Note, apiErr.Information)
	}

	return body, nil
}

// QuotePrice fetches the real-time underlying price with cache-first
// behavior. If the API fails, stale cached data is used as a fallback.
func (c *Client) QuotePrice(ctx context.Context, symbol string) (float64, error) {
	if c.cacheRepo != nil {
		var cached float64
		if found, err := c.cacheRepo.GetIfFresh(clientdata.TableQuote, symbol, &cached); err == nil && found {
			c.log.Debug().Str("symbol", symbol).Float64("price", cached).Msg("Quote cache hit")
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("entitlement", "realtime")

	body, err := c.get(ctx, c.client, params)
	if err != nil {
		if stale, ok := c.staleQuote(symbol); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Float64("price", stale).
				Msg("API failed, using stale cached quote")
			return stale, nil
		}
		return 0, err
	}

	var result struct {
		GlobalQuote struct {
			Price string `json:"05. price"`
		} `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse quote response: %w", err)
	}

	price, err := strconv.ParseFloat(result.GlobalQuote.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("no price in quote response for %s", symbol)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableQuote, symbol, price, c.quoteTTL); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache quote")
		}
	}

	c.log.Debug().Str("symbol", symbol).Float64("price", price).Msg("Fetched quote")
	return price, nil
}

func (c *Client) staleQuote(symbol string) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}
	var stale float64
	found, err := c.cacheRepo.Get(clientdata.TableQuote, symbol, &stale)
	return stale, err == nil && found && stale > 0
}

// defaultRiskFreeRate is used when the treasury endpoint is
// unavailable.
const defaultRiskFreeRate = 0.05

// RiskFreeRate returns the 3-month treasury yield as a decimal. It
// never fails: cache, then API, then the stale cache, then a 5%
// default.
func (c *Client) RiskFreeRate(ctx context.Context) float64 {
	const key = "3month"

	if c.cacheRepo != nil {
		var cached float64
		if found, err := c.cacheRepo.GetIfFresh(clientdata.TableTreasury, key, &cached); err == nil && found {
			return cached
		}
	}

	params := url.Values{}
	params.Set("function", "TREASURY_YIELD")
	params.Set("interval", "daily")
	params.Set("maturity", "3month")

	body, err := c.get(ctx, c.client, params)
	if err != nil {
		c.log.Warn().Err(err).Msg("Treasury yield unavailable, using fallback")
		return c.staleOrDefaultRate(key)
	}

	var result struct {
		Data []struct {
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil || len(result.Data) == 0 {
		return c.staleOrDefaultRate(key)
	}

	yield, err := strconv.ParseFloat(result.Data[0].Value, 64)
	if err != nil {
		return c.staleOrDefaultRate(key)
	}
	rate := yield / 100

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableTreasury, key, rate, c.rateTTL); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache treasury yield")
		}
	}

	return rate
}

func (c *Client) staleOrDefaultRate(key string) float64 {
	if c.cacheRepo != nil {
		var stale float64
		if found, err := c.cacheRepo.Get(clientdata.TableTreasury, key, &stale); err == nil && found {
			return stale
		}
	}
	return defaultRiskFreeRate
}

// OptionsChain fetches the full realtime options chain with greeks.
// If the API fails, stale cached data is used as a fallback.
func (c *Client) OptionsChain(ctx context.Context, symbol string) ([]domain.RawOption, error) {
	if c.cacheRepo != nil {
		var cached []domain.RawOption
		if found, err := c.cacheRepo.GetIfFresh(clientdata.TableOptions, symbol, &cached); err == nil && found {
			c.log.Debug().Str("symbol", symbol).Int("contracts", len(cached)).Msg("Chain cache hit")
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("function", "REALTIME_OPTIONS")
	params.Set("symbol", symbol)
	params.Set("require_greeks", "true")
	params.Set("entitlement", "realtime")

	body, err := c.get(ctx, c.chainClient, params)
	if err != nil {
		if stale, ok := c.staleChain(symbol); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Int("contracts", len(stale)).
				Msg("API failed, using stale cached chain")
			return stale, nil
		}
		return nil, err
	}

	var result struct {
		Data []domain.RawOption `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse options response: %w", err)
	}

	if c.cacheRepo != nil && len(result.Data) > 0 {
		if err := c.cacheRepo.Store(clientdata.TableOptions, symbol, result.Data, c.chainTTL); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache chain")
		}
	}

	c.log.Debug().Str("symbol", symbol).Int("contracts", len(result.Data)).Msg("Fetched options chain")
	return result.Data, nil
}

func (c *Client) staleChain(symbol string) ([]domain.RawOption, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	var stale []domain.RawOption
	found, err := c.cacheRepo.Get(clientdata.TableOptions, symbol, &stale)
	return stale, err == nil && found && len(stale) > 0
}
