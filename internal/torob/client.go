package torob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"woo-export-bot/internal/metrics"

	"github.com/shopspring/decimal"
)

const (
	// DefaultBaseURL is the public Torob API.
	DefaultBaseURL = "https://api.torob.com"

	searchPath        = "/search"
	maxErrorBodyBytes = 1024
)

var (
	// ErrUnauthorized indicates Torob rejected the API key.
	ErrUnauthorized = errors.New("torob rejected api key")
	// ErrMissingKey is returned before any request when no API key is given.
	ErrMissingKey = errors.New("torob api key missing")
)

// APIError carries a non-2xx Torob response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("torob search: status=%d body=%s", e.StatusCode, e.Body)
}

// Unwrap lets callers match auth failures with errors.Is(err, ErrUnauthorized).
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Config holds Torob client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; used by tests.
	HTTPClient *http.Client
}

// Client looks up market prices; the API key is passed per call.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Torob client.
func New(cfg Config, logger *slog.Logger, metrics *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: base,
		http:    httpClient,
		logger:  logger.With("component", "torob"),
		metrics: metrics,
	}
}

type searchResponse struct {
	MinPrice json.RawMessage `json:"min_price"`
}

// MinPrice returns the lowest market price Torob lists for query. found is
// false when Torob has no offer for it.
func (c *Client) MinPrice(ctx context.Context, apiKey, query string) (decimal.Decimal, bool, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return decimal.Zero, false, ErrMissingKey
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return decimal.Zero, false, nil
	}

	endpoint := c.baseURL + searchPath + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "woo-export-bot/1.0")

	res, err := c.http.Do(req)
	if err != nil {
		c.count("error")
		return decimal.Zero, false, fmt.Errorf("torob request: %w", err)
	}
	defer res.Body.Close()
	c.count(strconv.Itoa(res.StatusCode))

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode == http.StatusNotFound {
		return decimal.Zero, false, nil
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decimal.Zero, false, &APIError{
			StatusCode: res.StatusCode,
			Body:       truncate(strings.TrimSpace(string(body)), maxErrorBodyBytes),
		}
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, false, fmt.Errorf("decode response: %w", err)
	}
	price, ok, err := parseMinPrice(payload.MinPrice)
	if err != nil {
		return decimal.Zero, false, err
	}
	c.logger.Debug("market price looked up", "query", query, "found", ok)
	return price, ok, nil
}

// SuggestedPrice undercuts the market minimum by discountPercent.
func SuggestedPrice(minPrice decimal.Decimal, discountPercent float64) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discountPercent).Div(decimal.NewFromInt(100)))
	return minPrice.Mul(factor).Round(2)
}

// parseMinPrice accepts a JSON number or numeric string. Null, empty and
// non-positive values mean no offer.
func parseMinPrice(raw json.RawMessage) (decimal.Decimal, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, false, fmt.Errorf("decode min_price: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return decimal.Zero, false, nil
		}
	}
	price, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("decode min_price %q: %w", text, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, false, nil
	}
	return price, true, nil
}

func (c *Client) count(status string) {
	if c.metrics != nil {
		c.metrics.TorobRequests.WithLabelValues(status).Inc()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
