// Package reportclient fetches monthly reports from the report endpoint.
package reportclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"raport/internal/core"
)

// Path is the route prefix of the report endpoint.
const Path = "/api/reports/monthly/"

var (
	// ErrUnauthorized is returned for HTTP 401.
	ErrUnauthorized = errors.New("report endpoint: not authorized")
	// ErrBadMonth is returned for HTTP 400, the server rejected the month key.
	ErrBadMonth = errors.New("report endpoint: malformed month")
)

// StatusError carries any other non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("report endpoint: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("report endpoint: unexpected status %d: %s", e.Code, e.Body)
}

// Client performs report requests against BaseURL.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// New returns a client for the service at baseURL (scheme and host, optional path prefix).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme %q: must be http or https", u.Scheme)
	}
	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchMonthlyReport requests the report of month. The key is sent as given;
// callers validate it beforehand.
func (c *Client) FetchMonthlyReport(ctx context.Context, month core.MonthKey) (core.MonthlyReport, error) {
	endpoint := c.baseURL + Path + url.PathEscape(month.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("get monthly report %s: %w", month, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return core.MonthlyReport{}, ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest:
		return core.MonthlyReport{}, ErrBadMonth
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.MonthlyReport{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var report core.MonthlyReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return core.MonthlyReport{}, fmt.Errorf("decode monthly report %s: %w", month, err)
	}
	return report, nil
}
