package ozon

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ozonscout/backend/internal/domain"
	"github.com/ozonscout/backend/internal/infrastructure/fetch"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL       = "https://www.ozon.ru"
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 5 * time.Second

	pageJSONPath   = "/api/entrypoint-api.bx/page/json/v2"
	searchPath     = "/search/"
	pageLayout     = "pdpPage2column"
	identityLayout = 1
	detailLayout   = 2
)

// Getter performs a single GET attempt
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) (fetch.Response, error)
}

// Config holds the marketplace endpoint and retry budget
type Config struct {
	BaseURL       string
	RetryAttempts int
	RetryDelay    time.Duration
}

// Client scrapes product identities, search listings and detail pages from the marketplace
type Client struct {
	getter         Getter
	retrier        *fetch.Retrier
	baseURL        string
	productPattern *regexp.Regexp
	attempts       int
	delay          time.Duration
	logger         *zap.Logger
}

var _ domain.MarketplaceClient = (*Client)(nil)

// NewClient creates a marketplace client on top of getter
func NewClient(getter Getter, retrier *fetch.Retrier, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retrier == nil {
		retrier = fetch.NewRetrier(logger)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid marketplace base url %q", cfg.BaseURL)
	}

	return &Client{
		getter:         getter,
		retrier:        retrier,
		baseURL:        base.Scheme + "://" + base.Host,
		productPattern: productURLPattern(base.Host),
		attempts:       cfg.RetryAttempts,
		delay:          cfg.RetryDelay,
		logger:         logger.Named("ozon"),
	}, nil
}

// productURLPattern matches product links on host with or without the www. prefix
// and captures the site-relative product path.
func productURLPattern(host string) *regexp.Regexp {
	host = strings.TrimPrefix(host, "www.")
	return regexp.MustCompile(`^https?://(?:www\.)?` + regexp.QuoteMeta(host) + `(/(?:product|t)/[a-zA-Z\d-]+/?)`)
}

// ProductPath extracts the site-relative product path from a product URL
func (c *Client) ProductPath(productURL string) (string, bool) {
	m := c.productPattern.FindStringSubmatch(strings.TrimSpace(productURL))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// pageJSONURL builds the page-JSON API address for path. The nested query is
// passed through unescaped as the site expects.
func (c *Client) pageJSONURL(path string, pageIndex int) string {
	return c.baseURL + pageJSONPath + "?url=" + path +
		"?layout_container=" + pageLayout +
		"&layout_page_index=" + strconv.Itoa(pageIndex)
}

// absolute resolves a site-relative link against the base origin
func (c *Client) absolute(link string) string {
	if strings.HasPrefix(link, "/") {
		return c.baseURL + link
	}
	return link
}

// get fetches rawURL through the retry loop and returns the body
func (c *Client) get(ctx context.Context, rawURL string, params url.Values, def string) (string, error) {
	resp, err := c.retrier.Do(ctx, func(ctx context.Context) (fetch.Response, error) {
		return c.getter.Get(ctx, rawURL, params)
	}, fetch.RetryOptions{
		Attempts:          c.attempts,
		Delay:             c.delay,
		Default:           def,
		RaiseOnExhaustion: true,
	})
	if err != nil {
		c.logger.Error("marketplace request failed", zap.String("url", rawURL), zap.Error(err))
		return "", err
	}
	return resp.Body, nil
}
