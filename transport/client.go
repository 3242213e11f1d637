// Copyright 2022 Piprate Limited
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport implements the HTTP/OAuth2 collaborator the record
// store client delegates to: request building, bearer-token refresh, and
// status-code-to-sentinel-error mapping. None of it is part of the
// cryptographic core.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/utils/jsonw"
)

// tokenState is the {None, Valid(expiry), Refreshing} machine from §4.8.
type tokenState int

const (
	tokenNone tokenState = iota
	tokenRefreshing
	tokenValid
)

// Client wraps an *http.Client bound to one base API URL and one set of
// client-credentials, refreshing its bearer token on demand.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string

	apiKeyID  string
	apiSecret string

	mu          sync.Mutex
	state       tokenState
	token       string
	tokenExpiry time.Time
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithHTTPClient overrides the default *http.Client (e.g. to inject a
// transport with custom timeouts or a test round-tripper).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient builds a Client for baseURL, authenticating lazily on first use
// with apiKeyID/apiSecret via OAuth2 client-credentials.
func NewClient(baseURL, apiKeyID, apiSecret string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKeyID:   apiKeyID,
		apiSecret:  apiSecret,
		userAgent:  "sealedvault-client",
		state:      tokenNone,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Logout discards the cached token, forcing re-authentication on next use.
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.state = tokenNone
}

type requestOptions struct {
	body               io.Reader
	headers            map[string]string
	skipAuthentication bool
}

// Option configures one SendRequest call.
type Option func(*requestOptions)

// WithBody attaches a raw request body.
func WithBody(body io.Reader) Option {
	return func(o *requestOptions) { o.body = body }
}

// WithJSONBody marshals val with the wire JSON codec and attaches it as the
// request body, setting Content-Type: application/json.
func WithJSONBody(val any) Option {
	return func(o *requestOptions) {
		b, err := jsonw.Marshal(val)
		if err != nil {
			// deferred: surfaced as a body-read failure by SendRequest,
			// consistent with how a bad io.Reader would fail.
			o.body = errReader{err}
			return
		}
		o.body = bytes.NewReader(b)
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers["Content-Type"] = "application/json"
	}
}

// WithHeaders attaches extra request headers.
func WithHeaders(headers map[string]string) Option {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// SkipAuthentication omits the bearer token (used for the token endpoint
// itself, which authenticates via HTTP Basic instead).
func SkipAuthentication() Option {
	return func(o *requestOptions) { o.skipAuthentication = true }
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// SendRequest issues one HTTP request against path (relative to baseURL),
// attaching a bearer token unless SkipAuthentication was passed.
func (c *Client) SendRequest(ctx context.Context, method, path string, opts ...Option) (*http.Response, error) {
	var options requestOptions
	for _, o := range opts {
		o(&options)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, options.body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransportError, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	if !options.skipAuthentication {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log.Debug().Str("method", method).Str("path", path).Msg("sending request")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransportError, err)
	}
	return res, nil
}

// LoadContents sends a request and decodes a 2xx JSON body into val,
// mapping non-2xx statuses to the §7 sentinel errors.
func (c *Client) LoadContents(ctx context.Context, method, path string, val any, opts ...Option) error {
	res, err := c.SendRequest(ctx, method, path, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	return DecodeResponse(res, path, val)
}

// DecodeResponse maps an *http.Response's status code to the §7 sentinel
// errors and, on 2xx, decodes the body into val (skipped if val is nil).
func DecodeResponse(res *http.Response, path string, val any) error {
	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		if val == nil {
			return nil
		}
		if dest, ok := val.(*[]byte); ok {
			b, err := io.ReadAll(res.Body)
			if err != nil {
				return fmt.Errorf("%w: %v", model.ErrTransportError, err)
			}
			*dest = b
			return nil
		}
		if err := jsonw.Decode(res.Body, val); err != nil {
			return fmt.Errorf("%w: decode response: %v", model.ErrTransportError, err)
		}
		return nil
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %d", model.ErrAuthFailure, path, res.StatusCode)
	case res.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", model.ErrConflict, path)
	default:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		log.Error().Str("path", path).Int("status", res.StatusCode).Bytes("body", msg).Msg("request failed")
		return fmt.Errorf("%w: %s status=%d body=%s", model.ErrTransportError, path, res.StatusCode, msg)
	}
}

// tokenResponse is the OAuth2 client-credentials reply.
type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ensureToken returns a valid bearer token, refreshing it if absent or
// expired. mu is held for the whole tokenRefreshing phase, which prevents
// overlapping refreshes from concurrent callers sharing one Client: they
// wait for the in-flight refresh and then reuse its token.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == tokenValid && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	c.state = tokenRefreshing

	tok, expiry, err := c.authenticate(ctx)
	if err != nil {
		c.state = tokenNone
		return "", err
	}
	c.token = tok
	c.tokenExpiry = expiry
	c.state = tokenValid
	return tok, nil
}

// authenticate performs the HTTP-Basic client-credentials exchange against
// /v1/auth/token.
func (c *Client) authenticate(ctx context.Context) (string, time.Time, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", model.ErrTransportError, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)
	req.SetBasicAuth(c.apiKeyID, c.apiSecret)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", model.ErrTransportError, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return "", time.Time{}, fmt.Errorf("%w: token request rejected", model.ErrAuthFailure)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", time.Time{}, fmt.Errorf("%w: token endpoint status=%d body=%s", model.ErrTransportError, res.StatusCode, body)
	}

	var tr tokenResponse
	if err := jsonw.Decode(res.Body, &tr); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: decode token response: %v", model.ErrTransportError, err)
	}
	return tr.AccessToken, tr.ExpiresAt, nil
}
