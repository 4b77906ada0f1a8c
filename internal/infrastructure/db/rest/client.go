// Package rest talks to a PostgREST-compatible HTTP API (Supabase and
// friends) and exposes it as an identity repository.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client issues table requests against a PostgREST endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// APIError is a non-2xx answer from the remote store.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rest: status %d", e.Status)
	}
	return fmt.Sprintf("rest: status %d: %s %s", e.Status, e.Message, e.Details)
}

// NewClient returns a Client rooted at baseURL (for example
// https://project.supabase.co/rest/v1).
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type request struct {
	method string
	table  string
	query  url.Values
	body   any
	prefer []string
}

type response struct {
	body         []byte
	contentRange string
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	reqURL := c.baseURL + "/" + r.table
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var body io.Reader = http.NoBody
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", r.table, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", r.method, r.table, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, r.table, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", r.method, r.table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(payload, apiErr)
		return nil, apiErr
	}
	return &response{body: payload, contentRange: resp.Header.Get("Content-Range")}, nil
}

// total extracts the exact row count from a Content-Range header such as
// "0-9/150" or "*/0".
func total(contentRange string) (int64, error) {
	i := strings.LastIndexByte(contentRange, '/')
	if i < 0 || i == len(contentRange)-1 {
		return 0, fmt.Errorf("content-range %q carries no total", contentRange)
	}
	n, err := strconv.ParseInt(contentRange[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("content-range %q: %w", contentRange, err)
	}
	return n, nil
}

func eq(v string) string { return "eq." + v }

func isConflict(err error) (*APIError, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return nil, false
	}
	return apiErr, apiErr.Status == http.StatusConflict || apiErr.Code == "23505"
}
