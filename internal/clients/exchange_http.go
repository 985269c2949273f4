package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/example/txengine/internal/metrics"
)

// HTTPExchangeClient is a REST client for the exchange gateway (§6):
// JSON bodies, bearer auth selected by Role, exponential backoff with
// jitter on transient failures. The retry loop is the teacher's
// generic-HTTP-client-with-retries pattern, specialized to this one
// gateway instead of a generic JSON fetch.
type HTTPExchangeClient struct {
	HTTP        *http.Client
	BaseURL     string
	UserToken   string
	SystemToken string
	MaxRetries  int
	BaseDelay   time.Duration
	Metrics     *metrics.Metrics
}

func NewHTTPExchangeClient(baseURL, userToken, systemToken string, m *metrics.Metrics) *HTTPExchangeClient {
	return &HTTPExchangeClient{
		HTTP:        &http.Client{Timeout: 10 * time.Second},
		BaseURL:     baseURL,
		UserToken:   userToken,
		SystemToken: systemToken,
		MaxRetries:  3,
		BaseDelay:   100 * time.Millisecond,
		Metrics:     m,
	}
}

func (c *HTTPExchangeClient) token(role Role) string {
	if role == RoleSystem {
		return c.SystemToken
	}
	return c.UserToken
}

func (c *HTTPExchangeClient) Rate(ctx context.Context, in RateInput, role Role) (RateOutput, error) {
	defer c.observe("rate")()
	var out RateOutput
	err := c.doJSON(ctx, role, http.MethodGet,
		fmt.Sprintf("%s/rate?from=%s&to=%s", c.BaseURL, in.From, in.To), nil, &out)
	return out, err
}

func (c *HTTPExchangeClient) RefreshRate(ctx context.Context, in RateInput, role Role) (RateOutput, error) {
	defer c.observe("refresh_rate")()
	var out RateOutput
	err := c.doJSON(ctx, role, http.MethodPost,
		fmt.Sprintf("%s/rate/refresh", c.BaseURL), in, &out)
	return out, err
}

func (c *HTTPExchangeClient) Exchange(ctx context.Context, in ExchangeInput, role Role) error {
	defer c.observe("exchange")()
	return c.doJSON(ctx, role, http.MethodPost, fmt.Sprintf("%s/exchange", c.BaseURL), in, nil)
}

func (c *HTTPExchangeClient) observe(operation string) func() {
	if c.Metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		c.Metrics.ExchangeCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// doJSON performs one request with retry + exponential backoff and
// jitter, matching the teacher's http-client-retries exercise: retry
// on transport/5xx failures, bail immediately on 4xx, respect ctx
// cancellation between attempts.
func (c *HTTPExchangeClient) doJSON(ctx context.Context, role Role, method, url string, body, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		err := c.attempt(ctx, role, method, url, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.MaxRetries {
			break
		}
		delay := c.BaseDelay * time.Duration(uint64(1)<<uint(attempt))
		jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(delay))
		select {
		case <-time.After(delay + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("exchange client: all retries failed: %w", lastErr)
}

func (c *HTTPExchangeClient) attempt(ctx context.Context, role Role, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &nonRetryableError{err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &nonRetryableError{err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token(role))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err // transport error: retryable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("exchange gateway returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return &nonRetryableError{fmt.Errorf("exchange gateway returned %d: %s", resp.StatusCode, respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &nonRetryableError{err}
	}
	return nil
}

type nonRetryableError struct{ err error }

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	_, nonRetryable := err.(*nonRetryableError)
	return !nonRetryable
}
