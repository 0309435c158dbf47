// Package apiclient is a small JSON client for the backoffice API.
package apiclient

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

	"github.com/gigan-store/session-client/sessions"
	"github.com/pkg/errors"
)

const (
	defaultTimeout = 15 * time.Second
	loginPath      = "/api/auth/login"
	accountPath    = "/api/account"
	sessionPath    = "/api/account/session"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client sends JSON requests relative to a base URL. Session handling is left
// to the RoundTripper it is built with.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a Client. rt is usually a transport.Interceptor; nil means
// http.DefaultTransport.
func New(baseURL string, rt http.RoundTripper, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: rt, Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// URL joins path and query onto the base URL. Nil query values are skipped.
func (c *Client) URL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if q := encodeQuery(query); q != "" {
		u += "?" + q
	}
	return u
}

func encodeQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	clean := url.Values{}
	for k, vs := range query {
		if vs == nil {
			continue
		}
		clean[k] = vs
	}
	return clean.Encode()
}

// Do sends body as JSON and decodes the response into out. A top level
// "data" field in the response is unwrapped first. out and body may be nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	data, payload := decodePayload(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp, raw, data, payload)}
	}

	if out == nil || payload == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// decodePayload parses raw as JSON, best effort. It returns the top level
// object, if any, and the payload with a "data" wrapper removed.
func decodePayload(raw []byte) (map[string]json.RawMessage, json.RawMessage) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, trimmed
	}
	if inner, ok := obj["data"]; ok {
		return obj, inner
	}
	return obj, trimmed
}

// errorMessage picks the most useful description of a failed response.
func errorMessage(resp *http.Response, raw []byte, data map[string]json.RawMessage, payload json.RawMessage) string {
	var inner map[string]json.RawMessage
	_ = json.Unmarshal(payload, &inner)
	if msg := stringField(inner, "error"); msg != "" {
		return msg
	}
	if msg := stringField(data, "message"); msg != "" {
		return msg
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

func stringField(obj map[string]json.RawMessage, name string) string {
	v, ok := obj[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the account summary returned by the backend.
type User struct {
	ID       string        `json:"id"`
	Username string        `json:"username"`
	Name     string        `json:"name,omitempty"`
	Role     sessions.Role `json:"role"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.Post(ctx, loginPath, req, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("login response carried no token")
	}
	return &resp, nil
}

// Account returns the user the current session belongs to.
func (c *Client) Account(ctx context.Context) (*User, error) {
	var user User
	if err := c.Get(ctx, accountPath, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// EndSession asks the backend to revoke the current token.
func (c *Client) EndSession(ctx context.Context) error {
	return c.Do(ctx, http.MethodDelete, sessionPath, nil, nil, nil)
}
