// Package transport is the single outbound HTTP surface of the application.
// All remote reads (odds provider, fixture provider, historical CSV host) go
// through Request, which retries transient failures and decodes compressed
// bodies. It never touches the cache; degradation decisions belong to callers.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/internal/metrics"
	"golang.org/x/time/rate"
)

var (
	// RetryAttempts is the total number of tries per request, not extra retries
	RetryAttempts = 3
	// RetryDelay is the fixed pause between attempts. No backoff, no jitter
	RetryDelay = 2 * time.Second
)

// limiter keeps us polite with the free-tier providers: 10 calls a minute
var limiter = rate.NewLimiter(rate.Every(6*time.Second), 1)

// SetRateLimit replaces the outbound courtesy limiter
func SetRateLimit(interval time.Duration, burst int) {
	limiter = rate.NewLimiter(rate.Every(interval), burst)
}

// Request fetches the given URL with optional headers and query parameters.
// Any transport error or non-2xx status is retried up to RetryAttempts times
// with a fixed RetryDelay between attempts. The terminal error carries the
// URL and the last underlying error
func Request(rawURL string, headers map[string]string, params map[string]string) ([]byte, error) {
	client, err := GetHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= RetryAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(RetryDelay)
		}

		if err := limiter.Wait(context.Background()); err != nil {
			lastErr = err
			continue
		}

		data, err := doRequest(client, u, headers)
		if err == nil {
			metrics.Default().RecordFetch(u.Host, time.Since(start).Seconds(), false)
			return data, nil
		}
		lastErr = err
		logger.Warn("Request attempt failed", attempt, u.Host, err)
	}

	metrics.Default().RecordFetch(u.Host, time.Since(start).Seconds(), true)
	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", u.Redacted(), RetryAttempts, lastErr)
}

func doRequest(client *http.Client, u *url.URL, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	setBrowserHeaders(req)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request returned error status %d", resp.StatusCode)
	}

	return decodeBody(resp)
}

// GetHtml fetches a page with no extra headers or parameters
func GetHtml(htmlUrl string) ([]byte, error) {
	return Request(htmlUrl, nil, nil)
}
