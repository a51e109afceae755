package woo

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
	// DefaultPageSize is the largest per_page WooCommerce accepts.
	DefaultPageSize = 100
	// DefaultMaxProducts bounds a single catalog fetch.
	DefaultMaxProducts = 1000

	productsPath      = "/wp-json/wc/v3/products"
	totalPagesHeader  = "X-WP-TotalPages"
	maxErrorBodyBytes = 2048
)

var (
	// ErrUnauthorized indicates WooCommerce rejected the key/secret pair.
	ErrUnauthorized = errors.New("woocommerce rejected credentials")
	// ErrMissingCredentials is returned before any request when the site URL or keys are empty.
	ErrMissingCredentials = errors.New("woocommerce credentials incomplete")
)

// APIError carries a non-2xx WooCommerce response.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("woocommerce %s: status=%d body=%s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap lets callers match auth failures with errors.Is(err, ErrUnauthorized).
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Credentials identifies one shop owner's store.
type Credentials struct {
	SiteURL   string
	APIKey    string
	APISecret string
}

func (c Credentials) complete() bool {
	return strings.TrimSpace(c.SiteURL) != "" && c.APIKey != "" && c.APISecret != ""
}

// Config holds WooCommerce client configuration.
type Config struct {
	Timeout     time.Duration
	PageSize    int
	MaxProducts int
	// HTTPClient overrides the default client; used by tests.
	HTTPClient *http.Client
}

// Client talks to many stores; credentials are passed per call.
type Client struct {
	logger      *slog.Logger
	http        *http.Client
	metrics     *metrics.Metrics
	pageSize    int
	maxProducts int
}

// New creates a WooCommerce client.
func New(cfg Config, logger *slog.Logger, metrics *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	maxProducts := cfg.MaxProducts
	if maxProducts <= 0 {
		maxProducts = DefaultMaxProducts
	}
	return &Client{
		logger:      logger.With("component", "woocommerce"),
		http:        httpClient,
		metrics:     metrics,
		pageSize:    pageSize,
		maxProducts: maxProducts,
	}
}

// FetchOptions narrows a product listing.
type FetchOptions struct {
	// Status filters by post status (publish, draft, ...); empty means any.
	Status string
	// Search is passed as WooCommerce's free-text search.
	Search string
	// MaxProducts overrides the client ceiling when positive.
	MaxProducts int
}

// FetchResult is the accumulated catalog. Incomplete is set when a page
// failed after zero or more pages succeeded.
type FetchResult struct {
	Products   []Product
	Pages      int
	Incomplete bool
}

// FetchProducts pages through the store catalog in ascending page order.
// It stops on an empty page, on the reported total page count, or once
// MaxProducts products are collected. A failed page aborts the loop and the
// products gathered so far are returned together with the error.
func (c *Client) FetchProducts(ctx context.Context, creds Credentials, opts FetchOptions) (*FetchResult, error) {
	if !creds.complete() {
		return nil, ErrMissingCredentials
	}
	limit := opts.MaxProducts
	if limit <= 0 {
		limit = c.maxProducts
	}

	result := &FetchResult{}
	for page := 1; len(result.Products) < limit; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(c.pageSize))
		query.Set("page", strconv.Itoa(page))
		if opts.Status != "" {
			query.Set("status", opts.Status)
		}
		if opts.Search != "" {
			query.Set("search", opts.Search)
		}

		var batch []Product
		header, err := c.do(ctx, creds, http.MethodGet, productsPath, query, nil, &batch)
		if err != nil {
			result.Incomplete = true
			c.logger.Warn("product page fetch failed",
				"site", creds.SiteURL, "page", page, "fetched", len(result.Products), "error", err)
			return result, fmt.Errorf("fetch products page %d: %w", page, err)
		}
		result.Pages = page
		if len(batch) == 0 {
			break
		}

		remaining := limit - len(result.Products)
		if len(batch) > remaining {
			batch = batch[:remaining]
		}
		result.Products = append(result.Products, batch...)

		if total := parseTotalPages(header); total > 0 && page >= total {
			break
		}
	}

	c.logger.Debug("catalog fetched", "site", creds.SiteURL, "pages", result.Pages, "products", len(result.Products))
	return result, nil
}

// UpdatePrice sets a product's regular price.
func (c *Client) UpdatePrice(ctx context.Context, creds Credentials, productID int64, price decimal.Decimal) (*Product, error) {
	if !creds.complete() {
		return nil, ErrMissingCredentials
	}
	if productID <= 0 {
		return nil, fmt.Errorf("invalid product id %d", productID)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("negative price %s", price)
	}

	payload, err := json.Marshal(map[string]string{"regular_price": price.StringFixed(2)})
	if err != nil {
		return nil, fmt.Errorf("marshal price update: %w", err)
	}

	var updated Product
	endpoint := productsPath + "/" + strconv.FormatInt(productID, 10)
	if _, err := c.do(ctx, creds, http.MethodPut, endpoint, nil, bytes.NewReader(payload), &updated); err != nil {
		return nil, fmt.Errorf("update price of product %d: %w", productID, err)
	}
	return &updated, nil
}

// Ping checks that the store answers a one-product listing with the given credentials.
func (c *Client) Ping(ctx context.Context, creds Credentials) error {
	if !creds.complete() {
		return ErrMissingCredentials
	}
	query := url.Values{}
	query.Set("per_page", "1")
	query.Set("page", "1")
	var batch []Product
	if _, err := c.do(ctx, creds, http.MethodGet, productsPath, query, nil, &batch); err != nil {
		return fmt.Errorf("connection test: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, creds Credentials, method, endpoint string, query url.Values, body io.Reader, dest any) (http.Header, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(creds.SiteURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse site url: %w", err)
	}
	if query == nil {
		query = url.Values{}
	}
	base.Path += endpoint

	// WooCommerce only honours basic auth over TLS; plain http stores expect
	// the keys as query parameters.
	useBasicAuth := strings.EqualFold(base.Scheme, "https")
	if !useBasicAuth {
		query.Set("consumer_key", creds.APIKey)
		query.Set("consumer_secret", creds.APISecret)
	}
	base.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, base.String(), body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if useBasicAuth {
		req.SetBasicAuth(creds.APIKey, creds.APISecret)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "woo-export-bot/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	label := metricEndpoint(method, endpoint)
	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.WooRequests.WithLabelValues(label, "error").Inc()
		}
		return nil, fmt.Errorf("woocommerce request: %w", err)
	}
	defer res.Body.Close()

	statusLabel := strconv.Itoa(res.StatusCode)
	if c.metrics != nil {
		c.metrics.WooRequests.WithLabelValues(label, statusLabel).Inc()
		c.metrics.WooLatency.WithLabelValues(label, statusLabel).Observe(time.Since(start).Seconds())
	}

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res.Header, &APIError{
			Endpoint:   label,
			StatusCode: res.StatusCode,
			Body:       truncate(strings.TrimSpace(string(bodyBytes)), maxErrorBodyBytes),
		}
	}

	if dest == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return res.Header, nil
	}
	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return res.Header, fmt.Errorf("decode response: %w", err)
	}
	return res.Header, nil
}

func parseTotalPages(header http.Header) int {
	if header == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(header.Get(totalPagesHeader)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// metricEndpoint keeps label cardinality bounded by collapsing product ids.
func metricEndpoint(method, endpoint string) string {
	if strings.HasPrefix(endpoint, productsPath+"/") {
		return method + " products/{id}"
	}
	return method + " products"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
