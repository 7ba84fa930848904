package tikhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrCircuitOpen = errors.New("tikhub: circuit open")
	ErrBadStatus   = errors.New("tikhub: unexpected status")
)

// Client talks to the TikHub content API. All methods are plain
// request/response; resilience is a bounded 429 retry plus a circuit
// breaker shared across endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *breaker
	logger     *slog.Logger
}

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		breaker: newBreaker(breakerThreshold, breakerCooldown),
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// getJSON performs an authenticated GET with 429 retry and decodes the
// body into a generic map so callers can tolerate schema drift.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	if !c.breaker.allow(time.Now()) {
		return nil, ErrCircuitOpen
	}

	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.logger.Warn("api_request_failed", "path", path, "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Second
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.ParseFloat(ra, 64); err == nil && secs > 0 {
					retryAfter = time.Duration(secs * float64(time.Second))
				}
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.logger.Warn("api_rate_limited", "path", path, "retry_after", retryAfter)

			select {
			case <-time.After(retryAfter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: 429", ErrBadStatus)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
			c.breaker.observe(time.Now(), err)
			return nil, err
		}

		var data map[string]any
		if err := json.Unmarshal(body, &data); err != nil {
			err = fmt.Errorf("decode response: %w", err)
			c.breaker.observe(time.Now(), err)
			return nil, err
		}

		// The API wraps transport-level 200s around an application code.
		if code, ok := intField(data, "code"); ok && code != 200 {
			err := fmt.Errorf("%w: api code %d", ErrBadStatus, code)
			c.breaker.observe(time.Now(), err)
			return nil, err
		}

		c.breaker.observe(time.Now(), nil)
		return data, nil
	}

	c.breaker.observe(time.Now(), lastErr)
	return nil, lastErr
}

// BreakerState exposes the breaker state for the run report and logs.
func (c *Client) BreakerState() string {
	return c.breaker.current().String()
}

// helpers for navigating loosely-typed API payloads

func mapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func listField(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intField(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func boolField(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	v, _ := m[key].(bool)
	return v
}
