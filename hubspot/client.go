// Package hubspot is a small client for the HubSpot CRM and Forms APIs.
//
// A Client is built once from Config and shared by reference. Every non-2xx
// response and transport failure is returned as a *domain.Error whose Kind
// decides whether the call may be retried.
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

	"churn-calculator/domain"
)

const (
	DefaultAPIBaseURL   = "https://api.hubapi.com"
	DefaultFormsBaseURL = "https://api.hsforms.com"
	DefaultTimeout      = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Config holds the static settings for one HubSpot account.
type Config struct {
	AccessToken  string
	APIBaseURL   string
	FormsBaseURL string
	Timeout      time.Duration
	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client
}

type Client struct {
	accessToken  string
	apiBaseURL   string
	formsBaseURL string
	httpClient   *http.Client
}

// Response is a decoded HubSpot reply. Data holds the parsed JSON body, or the
// raw text when the body is not JSON.
type Response struct {
	Status int
	Body   []byte
	Data   any
}

// NewClient creates a Client. A missing access token is not an error here:
// authenticated calls report it as a configuration error so that the
// unauthenticated forms endpoint stays usable.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		accessToken:  strings.TrimSpace(cfg.AccessToken),
		apiBaseURL:   baseURLOrDefault(cfg.APIBaseURL, DefaultAPIBaseURL),
		formsBaseURL: baseURLOrDefault(cfg.FormsBaseURL, DefaultFormsBaseURL),
		httpClient:   httpClient,
	}
}

func baseURLOrDefault(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}

// HasAccessToken reports whether authenticated CRM calls can be made.
func (c *Client) HasAccessToken() bool {
	return c.accessToken != ""
}

// api performs an authenticated request against the CRM API.
func (c *Client) api(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	if c.accessToken == "" {
		return nil, domain.NewConfigurationError("HubSpot access token")
	}
	target := c.apiBaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.do(ctx, method, target, body, true)
}

// forms performs an unauthenticated request against the Forms API.
func (c *Client) forms(ctx context.Context, method, path string, body any) (*Response, error) {
	return c.do(ctx, method, c.formsBaseURL+path, body, false)
}

func (c *Client) do(ctx context.Context, method, target string, body any, authenticated bool) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &domain.Error{Kind: domain.KindClient, Message: "encode request body", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindClient, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.accessToken))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.Error{
			Kind:    domain.KindNetwork,
			Message: fmt.Sprintf("%s %s", method, redactPath(target)),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindNetwork, Status: resp.StatusCode, Message: "read response body", Err: err}
	}

	out := &Response{Status: resp.StatusCode, Body: raw, Data: parseBody(raw)}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, classify(method, target, out)
	}
	return out, nil
}

// parseBody decodes JSON when possible and falls back to the raw text.
func parseBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return string(raw)
	}
	return data
}

// classify turns a non-2xx response into a tagged error.
func classify(method, target string, resp *Response) *domain.Error {
	kind := domain.KindClient
	switch {
	case resp.Status == http.StatusTooManyRequests:
		kind = domain.KindRateLimited
	case resp.Status >= 500:
		kind = domain.KindServer
	}

	message := http.StatusText(resp.Status)
	code := ""
	if obj, ok := resp.Data.(map[string]any); ok {
		if m, ok := obj["message"].(string); ok && m != "" {
			message = m
		}
		code = errorCode(obj)
	}

	return &domain.Error{
		Kind:    kind,
		Status:  resp.Status,
		Code:    code,
		Data:    resp.Data,
		Message: fmt.Sprintf("%s %s: %s", method, redactPath(target), message),
	}
}

// errorCode picks the most specific code HubSpot reports: the CRM "category",
// otherwise the first Forms "errorType".
func errorCode(obj map[string]any) string {
	if category, ok := obj["category"].(string); ok && category != "" {
		return category
	}
	if list, ok := obj["errors"].([]any); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]any); ok {
			if t, ok := first["errorType"].(string); ok {
				return t
			}
		}
	}
	return ""
}

// redactPath keeps only the path of target for error messages.
func redactPath(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.EscapedPath()
}

// decode unmarshals a successful response into out.
func decode(resp *Response, out any) error {
	if resp == nil || len(resp.Body) == 0 {
		return &domain.Error{Kind: domain.KindServer, Message: "empty response body"}
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &domain.Error{Kind: domain.KindServer, Status: resp.Status, Message: "decode response", Data: resp.Data, Err: err}
	}
	return nil
}
