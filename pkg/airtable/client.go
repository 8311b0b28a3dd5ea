// Package airtable is a minimal client for Airtable's record REST API.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// Client creates, updates and fetches records in one Airtable table.
type Client interface {
	CreateRecord(ctx context.Context, fields map[string]any) (*Record, error)
	UpdateRecord(ctx context.Context, id string, fields map[string]any) (*Record, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
}

// Record is an Airtable row.
type Record struct {
	ID          string         `json:"id,omitempty"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime,omitempty"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("airtable: unexpected status %s", e.Status)
}

// HTTPStatus returns the numeric code and the status line.
func (e *StatusError) HTTPStatus() (int, string) {
	return e.StatusCode, e.Status
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL. An empty u keeps the
// default.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit overrides the default limit of 5 requests per second, which
// is what Airtable allows per base.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	baseID  string
	table   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for table in base baseID using a personal
// access token.
func NewClient(token, baseID, table string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		baseID:  baseID,
		table:   table,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) CreateRecord(ctx context.Context, fields map[string]any) (*Record, error) {
	return c.do(ctx, http.MethodPost, "", &Record{Fields: fields})
}

func (c *httpClient) UpdateRecord(ctx context.Context, id string, fields map[string]any) (*Record, error) {
	if id == "" {
		return nil, eris.New("airtable: record id is required")
	}
	return c.do(ctx, http.MethodPatch, id, &Record{Fields: fields})
}

func (c *httpClient) GetRecord(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, eris.New("airtable: record id is required")
	}
	return c.do(ctx, http.MethodGet, id, nil)
}

func (c *httpClient) endpoint(id string) string {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(c.table))
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *httpClient) do(ctx context.Context, method, id string, payload *Record) (*Record, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "airtable: rate limit")
		}
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, eris.Wrap(err, "airtable: marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(id), body)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
	}

	var rec Record
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return nil, eris.Wrap(err, "airtable: unmarshal response")
	}
	return &rec, nil
}
