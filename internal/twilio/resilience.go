package twilio

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/3cpo-dev/channel-janitor/internal/telemetry"
)

// RetryConfig defines retry behavior for Twilio API calls
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []int // HTTP status codes that should be retried
}

// DefaultRetryConfig returns sensible retry defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		RetryableErrors: []int{429, 500, 502, 503, 504}, // Rate limit + server errors
	}
}

// RateLimiter spaces out API calls. It is shared by every worker of a batch.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond calls.
// A non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	if requestsPerSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := int(math.Max(1, requestsPerSecond))
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until it's safe to make the next API call
func (rl *RateLimiter) Wait(ctx context.Context) error {
	r := rl.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate limiter: reservation refused")
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	log.Debug().Dur("sleep", delay).Msg("Rate limiting API call")
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryableHTTPClient wraps HTTP client with retries and rate limiting
type RetryableHTTPClient struct {
	client      *http.Client
	retryConfig RetryConfig
	rateLimiter *RateLimiter
}

// NewRetryableHTTPClient creates a new HTTP client with retry logic
func NewRetryableHTTPClient(timeout time.Duration, requestsPerSecond float64, retry RetryConfig) *RetryableHTTPClient {
	return &RetryableHTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryConfig: retry,
		rateLimiter: NewRateLimiter(requestsPerSecond),
	}
}

// Do executes HTTP request with retry logic and rate limiting
func (c *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		reqClone := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			reqClone.Body = body
		}

		start := time.Now()
		resp, err := c.client.Do(reqClone)
		telemetry.TimerGlobal("janitor_http_request_duration", time.Since(start), map[string]string{
			"method": req.Method,
			"host":   req.URL.Host,
		})
		if err != nil {
			lastErr = err
			if attempt < c.retryConfig.MaxRetries && ctx.Err() == nil {
				delay := c.calculateDelay(attempt)
				log.Warn().
					Err(err).
					Int("attempt", attempt+1).
					Int("max_retries", c.retryConfig.MaxRetries).
					Dur("delay", delay).
					Str("url", req.URL.String()).
					Msg("HTTP request failed, retrying")
				if err := sleep(ctx, delay); err != nil {
					return nil, err
				}
				telemetry.CounterGlobal("janitor_http_retries", 1, map[string]string{"reason": "transport"})
				continue
			}
			return nil, lastErr
		}

		if c.shouldRetry(resp.StatusCode) && attempt < c.retryConfig.MaxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
			delay := c.calculateDelay(attempt)
			log.Warn().
				Int("status", resp.StatusCode).
				Int("attempt", attempt+1).
				Int("max_retries", c.retryConfig.MaxRetries).
				Dur("delay", delay).
				Str("url", req.URL.String()).
				Msg("HTTP request returned retryable error, retrying")
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			telemetry.CounterGlobal("janitor_http_retries", 1, map[string]string{"reason": fmt.Sprintf("%d", resp.StatusCode)})
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// shouldRetry determines if a status code should trigger a retry
func (c *RetryableHTTPClient) shouldRetry(statusCode int) bool {
	for _, code := range c.retryConfig.RetryableErrors {
		if statusCode == code {
			return true
		}
	}
	return false
}

// calculateDelay calculates exponential backoff delay with jitter
func (c *RetryableHTTPClient) calculateDelay(attempt int) time.Duration {
	delay := float64(c.retryConfig.InitialDelay) * math.Pow(c.retryConfig.BackoffFactor, float64(attempt))

	// +/-25% jitter
	jitter := delay * 0.25 * (2*rand.Float64() - 1)
	delay += jitter

	if delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}

	return time.Duration(delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
