package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sschnei8/predictionMarketExploro/internal/metrics"
	"github.com/sschnei8/predictionMarketExploro/internal/ratelimit"
	"github.com/sschnei8/predictionMarketExploro/internal/retry"
)

// Signer produces authentication headers for a request.
// auth.Credentials satisfies it.
type Signer interface {
	SignRequest(method, path string) (map[string]string, error)
}

// Client provides access to the Kalshi REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	signer     Signer
	limiter    *ratelimit.Limiter

	policy retry.Policy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
//
// By default each request times out after 30s, transient failures are tried
// five times with a 1s doubling backoff, and requests are not rate limited.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  slog.Default(),
		limiter: ratelimit.New(0),
		policy:  retry.DefaultPolicy(IsTransient),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.policy.IsRetryable = IsTransient
	c.policy.OnRetry = c.logRetry

	return c
}

// WithTimeout sets the per-request timeout. A timed out attempt is retried.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the total attempt count and the initial backoff.
func WithRetries(maxAttempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.policy.MaxAttempts = maxAttempts
		c.policy.InitialDelay = backoff
	}
}

// WithMaxBackoff caps the wait between attempts.
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.policy.MaxDelay = d
	}
}

// WithRateLimit spaces every attempt at least 1/rps apart.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = ratelimit.New(rps)
	}
}

// WithLimiter shares an existing limiter between clients.
func WithLimiter(l *ratelimit.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSigner signs every request with KALSHI-ACCESS-* headers.
func WithSigner(s Signer) ClientOption {
	return func(c *Client) {
		c.signer = s
	}
}

func (c *Client) logRetry(attempt int, err error, wait time.Duration) {
	metrics.RetriesTotal.Inc()
	c.logger.Warn("transient failure, retrying",
		"attempt", attempt,
		"max_attempts", c.policy.MaxAttempts,
		"backoff", wait,
		"error", err,
	)
}
