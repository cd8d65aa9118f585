package gateway

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"

	"poemharvest/internal/config"
	"poemharvest/internal/types"
)

// maxResponseBody caps an API response read; rendered pages stay well
// under this.
const maxResponseBody = 32 << 20

func newHTTPClient(cfg *config.GatewayConfig) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // we handle decompression ourselves (including brotli)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}
}

// apiError is the MediaWiki API-level error envelope.
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// do executes one logical API operation with permit gating and bounded
// retry, decoding the JSON response into out.
func (c *Client) do(ctx context.Context, op string, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	reqURL := c.endpoint + "?" + params.Encode()

	var lastErr *types.FetchError
	for attempt := 0; ; attempt++ {
		if err := c.acquire(ctx); err != nil {
			return &types.FetchError{Op: op, Err: err, Retryable: false}
		}
		c.metrics.APIRequestsTotal.Add(1)
		body, fetchErr := c.fetchOnce(ctx, op, reqURL)
		c.release()

		if fetchErr == nil {
			return c.decode(op, body, out)
		}
		lastErr = fetchErr

		if !fetchErr.Retryable || !c.retry.shouldRetry(attempt) {
			break
		}
		c.metrics.APIRequestsRetried.Add(1)
		wait := c.retry.backoff(attempt)
		if fetchErr.RetryAfter > wait {
			wait = fetchErr.RetryAfter
		}
		c.logger.Warn("retrying API call",
			"op", op,
			"attempt", attempt+1,
			"wait", wait,
			"error", fetchErr,
		)
		select {
		case <-ctx.Done():
			return &types.FetchError{Op: op, Err: ctx.Err(), Retryable: false}
		case <-time.After(wait):
		}
	}
	c.metrics.APIRequestsFailed.Add(1)
	return lastErr
}

// fetchOnce performs a single HTTP round trip and returns the
// decompressed body.
func (c *Client) fetchOnce(ctx context.Context, op, reqURL string) ([]byte, *types.FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &types.FetchError{Op: op, Err: err, Retryable: false}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.FetchError{Op: op, Err: err, Retryable: isRetryableNetErr(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &types.FetchError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New("rate limited"),
			Retryable:  true,
			RetryAfter: retryAfter,
		}
	case resp.StatusCode >= 500:
		return nil, &types.FetchError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("server error %s", resp.Status),
			Retryable:  true,
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &types.FetchError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
			Retryable:  false,
		}
	}

	reader, err := decompressingReader(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, &types.FetchError{Op: op, Err: err, Retryable: false}
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxResponseBody))
	if err != nil {
		return nil, &types.FetchError{Op: op, Err: err, Retryable: true}
	}
	return body, nil
}

// decode unmarshals the API response, surfacing MediaWiki error
// envelopes as non-retryable failures.
func (c *Client) decode(op string, body []byte, out any) error {
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &types.FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err), Retryable: false}
	}
	if envelope.Error != nil {
		return &types.FetchError{
			Op:        op,
			Err:       fmt.Errorf("API error %s: %s", envelope.Error.Code, envelope.Error.Info),
			Retryable: false,
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &types.FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err), Retryable: false}
	}
	return nil
}

// decompressingReader wraps the body according to Content-Encoding.
func decompressingReader(body io.Reader, encoding string) (io.Reader, error) {
	switch encoding {
	case "gzip":
		return gzip.NewReader(body)
	case "deflate":
		return flate.NewReader(body), nil
	case "br":
		return brotli.NewReader(body), nil
	default:
		return body, nil
	}
}

func isRetryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// Connection resets and the like come through as url.Error
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// parseRetryAfter handles the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
