// Package fetch issues outbound HTTP GETs against the marketplace and drives
// the retry policy that wraps every one of them.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ozonscout/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single request attempt
const DefaultTimeout = 25 * time.Second

// Response is the outcome of a single GET: the final URL after redirects, the status and the body
type Response struct {
	URL        string
	StatusCode int
	Body       string
}

// ExecutorConfig holds transport settings for the Executor
type ExecutorConfig struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables throttling
	Burst             int
}

// Executor performs one GET per call. It never retries.
type Executor struct {
	httpClient  *http.Client
	headers     domain.HeaderProvider
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewExecutor creates an Executor sending the provider's current headers with every request
func NewExecutor(headers domain.HeaderProvider, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers:     headers,
		rateLimiter: limiter,
		logger:      logger,
	}
}

// Get fetches rawURL with params merged into its query string. rawURL is sent
// untouched when params is empty, so pre-built marketplace URLs keep their exact form.
func (e *Executor) Get(ctx context.Context, rawURL string, params url.Values) (Response, error) {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	reqURL, err := withParams(rawURL, params)
	if err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	if e.headers != nil {
		for key, values := range e.headers.Headers() {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
	}
	// The transport only decompresses transparently when it negotiated the encoding itself.
	req.Header.Del("Accept-Encoding")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Debug("request error", zap.String("url", reqURL), zap.Error(err))
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read body: %w", err)
	}

	finalURL := reqURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	e.logger.Debug("request done", zap.Int("status", resp.StatusCode), zap.String("url", finalURL))

	return Response{URL: finalURL, StatusCode: resp.StatusCode, Body: string(body)}, nil
}

func withParams(rawURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	q := u.Query()
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
