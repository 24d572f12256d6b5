// Package outbound is the shared JSON-over-HTTP client used by content
// providers and notification dispatchers.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"calflow/internal/telemetry"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with status %d: %s", e.Service, e.Code, e.Body)
}

// Client performs outbound calls with a bounded timeout and records metrics
// for every call.
type Client struct {
	http    *http.Client
	metrics *telemetry.CallMetrics
	logger  zerolog.Logger
}

func New(timeout time.Duration, logger zerolog.Logger) *Client {
	return NewWithHTTPClient(&http.Client{Timeout: timeout}, logger)
}

func NewWithHTTPClient(hc *http.Client, logger zerolog.Logger) *Client {
	return &Client{
		http:    hc,
		metrics: telemetry.NewCallMetrics("calflow/outbound"),
		logger:  logger,
	}
}

// Call describes one outbound request.
type Call struct {
	Service string // e.g. "tmdb"
	Op      string // e.g. "discover"
	Method  string
	URL     string
	Query   url.Values
	Header  http.Header
	Body    any // encoded as JSON when non-nil
	Form    url.Values
}

// Do executes call and decodes a JSON response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, call Call, out any) error {
	start := time.Now()

	var err error

	defer func() { c.metrics.Observe(ctx, call.Service, call.Op, start, err) }()

	var req *http.Request
	req, err = c.newRequest(ctx, call)
	if err != nil {
		return err
	}

	c.logger.Debug().Str("service", call.Service).Str("op", call.Op).Str("method", req.Method).Msg("outbound call")

	var resp *http.Response
	resp, err = c.http.Do(req)
	if err != nil {
		err = fmt.Errorf("%s %s request failed: %w", call.Service, call.Op, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err = &StatusError{Service: call.Service, Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%s %s returned an empty body: %w", call.Service, call.Op, err)
			return err
		}
		err = fmt.Errorf("failed to decode %s %s response: %w", call.Service, call.Op, err)
		return err
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, call Call) (*http.Request, error) {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	target := call.URL
	if len(call.Query) > 0 {
		target += "?" + call.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case call.Body != nil:
		b, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %s request: %w", call.Service, call.Op, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	case call.Form != nil:
		body = bytes.NewBufferString(call.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s request: %w", call.Service, call.Op, err)
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "calflow/1.0")
	return req, nil
}
