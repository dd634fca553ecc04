// Package twilio is a small REST client for the parts of the Twilio chat,
// TaskRouter and Proxy APIs the janitor needs.
package twilio

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
)

// Default API hosts.
const (
	DefaultChatURL       = "https://chat.twilio.com"
	DefaultTaskRouterURL = "https://taskrouter.twilio.com"
	DefaultProxyURL      = "https://proxy.twilio.com"
)

// DefaultPageSize is sent with every first-page list request.
const DefaultPageSize = 50

// Endpoints holds the base URL of each API family. Tests point all three at
// one httptest server.
type Endpoints struct {
	Chat       string
	TaskRouter string
	Proxy      string
}

// DefaultEndpoints returns the production API hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{Chat: DefaultChatURL, TaskRouter: DefaultTaskRouterURL, Proxy: DefaultProxyURL}
}

// Options configures a Client.
type Options struct {
	AccountSID        string
	AuthToken         string
	Endpoints         Endpoints
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             RetryConfig
}

// Client talks to the Twilio REST APIs with basic auth.
type Client struct {
	accountSID string
	authToken  string
	endpoints  Endpoints
	http       *RetryableHTTPClient
}

// New creates a client. Zero-valued options fall back to defaults.
func New(opts Options) (*Client, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, errors.New("twilio: account sid and auth token are required")
	}
	ep := opts.Endpoints
	def := DefaultEndpoints()
	if ep.Chat == "" {
		ep.Chat = def.Chat
	}
	if ep.TaskRouter == "" {
		ep.TaskRouter = def.TaskRouter
	}
	if ep.Proxy == "" {
		ep.Proxy = def.Proxy
	}
	ep.Chat = strings.TrimRight(ep.Chat, "/")
	ep.TaskRouter = strings.TrimRight(ep.TaskRouter, "/")
	ep.Proxy = strings.TrimRight(ep.Proxy, "/")

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.BackoffFactor == 0 {
		opts.Retry = DefaultRetryConfig()
	}
	return &Client{
		accountSID: opts.AccountSID,
		authToken:  opts.AuthToken,
		endpoints:  ep,
		http:       NewRetryableHTTPClient(opts.Timeout, opts.RequestsPerSecond, opts.Retry),
	}, nil
}

// APIError is the error body Twilio returns for non-2xx responses.
type APIError struct {
	Status   int    `json:"status"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twilio api status %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("twilio api status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// listURL returns pageURL when following a cursor, or base+path with the
// default page size for the first page. Cursor URLs must stay on the host
// the credentials were meant for.
func listURL(base, path, pageURL string) (string, error) {
	if pageURL == "" {
		return fmt.Sprintf("%s%s?PageSize=%d", base, path, DefaultPageSize), nil
	}
	next, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse next page url: %w", err)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if next.Scheme != b.Scheme || next.Host != b.Host {
		return "", fmt.Errorf("next page url %q is not on %s", pageURL, b.Host)
	}
	return pageURL, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if out != nil {
		dec := json.NewDecoder(resp.Body)
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
	}
	return nil
}
