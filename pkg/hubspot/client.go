// Package hubspot is a minimal client for HubSpot's contact upsert endpoint.
package hubspot

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

const defaultBaseURL = "https://api.hubapi.com"

// Client creates or updates HubSpot contacts keyed by email.
type Client interface {
	CreateOrUpdateContact(ctx context.Context, email string, props []Property) (*ContactResponse, error)
}

// Property is a single contact property in the legacy contacts API.
type Property struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// ContactRequest is the body of POST /contacts/v1/contact/createOrUpdate/email/{email}.
type ContactRequest struct {
	Properties []Property `json:"properties"`
}

// ContactResponse is HubSpot's reply to a createOrUpdate call.
type ContactResponse struct {
	VID   int64 `json:"vid"`
	IsNew bool  `json:"isNew"`
	// Raw holds the decoded body, including fields not modelled above.
	Raw map[string]any `json:"-"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hubspot: unexpected status %s", e.Status)
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

// WithRateLimit throttles outbound requests to rps per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a HubSpot client authenticated with an API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) CreateOrUpdateContact(ctx context.Context, email string, props []Property) (*ContactResponse, error) {
	if email == "" {
		return nil, eris.New("hubspot: email is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "hubspot: rate limit")
		}
	}

	body, err := json.Marshal(ContactRequest{Properties: props})
	if err != nil {
		return nil, eris.Wrap(err, "hubspot: marshal request")
	}

	endpoint := fmt.Sprintf("%s/contacts/v1/contact/createOrUpdate/email/%s/?hapikey=%s",
		c.baseURL, url.PathEscape(email), url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "hubspot: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "hubspot: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "hubspot: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
	}

	// The write already succeeded; an unreadable body only loses the details.
	result := &ContactResponse{}
	if err := json.Unmarshal(respBody, result); err != nil {
		return &ContactResponse{}, nil
	}
	_ = json.Unmarshal(respBody, &result.Raw)
	return result, nil
}
