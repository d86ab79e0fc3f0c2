// Package pipeline is the authentication-aware HTTP request path. Every
// outbound call gets the stored access token attached as a bearer
// credential; a 401 response triggers a single refresh-token exchange and
// one retry. Concurrent 401s share one in-flight exchange instead of each
// spending the refresh token on their own.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ajay020/slotbook/bridge"
	"github.com/ajay020/slotbook/credstore"
	"github.com/ajay020/slotbook/token"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 10 * time.Second

// Request is a single outbound API call. The body, when non-nil, is sent
// as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is the outcome of a sent request with the body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "[Response.Decode]")
	}
	return nil
}

// Client sends requests to the remote API with bearer-token attachment
// and refresh-and-retry on authorization failure. The access token is
// read from the credential store on every send, never from session state,
// so the pipeline carries no dependency on the UI-facing layer.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	refreshHTTP *http.Client // plain transport for the refresh exchange
	store       credstore.Store
	bridge      *bridge.Bridge
	group       singleflight.Group
	log         zerolog.Logger
	nowTime     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the pipeline logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithHTTPClient replaces the underlying HTTP client for both regular
// sends and the refresh exchange.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.refreshHTTP = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
		c.refreshHTTP.Timeout = d
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// New creates a pipeline Client for the API at baseURL.
func New(baseURL string, store credstore.Store, b *bridge.Bridge, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[pipeline.New] baseURL is required")
	}
	if store == nil {
		return nil, errors.New("[pipeline.New] credential store is required")
	}
	if b == nil {
		return nil, errors.New("[pipeline.New] bridge is required")
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		refreshHTTP: &http.Client{Timeout: defaultTimeout},
		store:       store,
		bridge:      b,
		log:         zerolog.Nop(),
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Send issues the request with the current access token attached. On a
// 401 it runs the refresh protocol once and retries once; the retried
// call's outcome is returned as-is. Absence of a stored token is not an
// error, unauthenticated endpoints still work.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	log := c.log.With().
		Str("request_id", uuid.NewString()).
		Str("method", req.Method).
		Str("path", req.Path).
		Logger()

	accessToken := c.currentAccessToken()
	if accessToken != "" && token.Expired(accessToken, c.nowTime()) {
		// The stored token is already past its exp claim; refreshing now
		// saves a round trip that would certainly 401. Best effort only:
		// on failure the 401 path below stays the authority.
		if fresh, err := c.refresh(ctx); err == nil {
			accessToken = fresh
		} else {
			log.Debug().Err(err).Msg("proactive refresh failed, sending with stored token")
		}
	}

	resp, err := c.do(ctx, req, accessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Authorization failure: this request gets exactly one refresh and
	// one retry, then whatever comes back is final.
	log.Debug().Msg("authorization failure, entering refresh protocol")

	if !c.hasRefreshToken() {
		// Terminal: nothing to exchange. Clear the credential pair and
		// tear the session down.
		c.clearCredentials(log)
		c.forceLogout(log)
		return nil, errors.Wrap(ErrSessionExpired, "[Client.Send] no refresh token")
	}

	fresh, err := c.refresh(ctx)
	if err != nil {
		c.forceLogout(log)
		return nil, errors.Wrapf(ErrSessionExpired, "[Client.Send] refresh exchange: %v", err)
	}

	retried, err := c.do(ctx, req, fresh)
	if err != nil {
		return nil, err
	}
	return retried, nil
}

// do issues one HTTP exchange. Transport failures come back wrapped as
// ErrNetwork.
func (c *Client) do(ctx context.Context, req Request, accessToken string) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.do] marshal body")
		}
		body = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.do] build request")
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "[Client.do] %s %s: %v", req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "[Client.do] read body: %v", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       raw,
	}, nil
}

func (c *Client) currentAccessToken() string {
	accessToken, err := c.store.Get(credstore.KeyAccessToken)
	if err != nil {
		// Read failures mean "no credential": fail open to the
		// unauthenticated state rather than crash the request.
		return ""
	}
	return accessToken
}

func (c *Client) hasRefreshToken() bool {
	refreshToken, err := c.store.Get(credstore.KeyRefreshToken)
	return err == nil && refreshToken != ""
}

func (c *Client) clearCredentials(log zerolog.Logger) {
	for _, key := range []string{credstore.KeyAccessToken, credstore.KeyRefreshToken, credstore.KeyUser} {
		if err := c.store.Delete(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to clear credential entry")
		}
	}
}

// forceLogout tears the session down through the bridge. When no
// registrant exists yet the pipeline still clears the stored credentials
// so that later requests go out unauthenticated.
func (c *Client) forceLogout(log zerolog.Logger) {
	if err := c.bridge.Logout(); err != nil {
		if errors.Is(err, bridge.ErrNoRegistrant) {
			log.Warn().Msg("no logout registrant, clearing credentials directly")
			c.clearCredentials(log)
			return
		}
		log.Warn().Err(err).Msg("bridge logout failed")
	}
}
