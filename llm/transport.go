package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-200 response from a provider. Message holds the
// provider's own error text when it could be decoded.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API error %d: %s", e.StatusCode, e.Message)
}

// baseRetryDelay is a var so tests can shorten it.
var baseRetryDelay = 1 * time.Second

// retryableStatusCode reports whether a status warrants another attempt.
// 429 is not retried; the batch stop policy handles rate limits.
func retryableStatusCode(code int) bool {
	return code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

type httpTransport struct {
	client     *http.Client
	maxRetries int
}

func newHTTPTransport(cfg Config) httpTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return httpTransport{
		client:     &http.Client{Timeout: timeout},
		maxRetries: retries,
	}
}

// doPost sends body as JSON and returns the 200 response body.
func (t *httpTransport) doPost(ctx context.Context, url string, headers map[string]string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1))
			slog.Warn("llm: retrying request",
				"url", redactURL(url),
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", redactURL(url), err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// errorMessage pulls {"error":{"message":...}} or {"error":"..."} out of an
// error body, falling back to the raw text.
func errorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		if nested.Error.Status != "" {
			return nested.Error.Status + ": " + nested.Error.Message
		}
		return nested.Error.Message
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return flat.Error
	}
	return strings.TrimSpace(string(body))
}

// redactURL drops the query string, which may carry an API key.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
