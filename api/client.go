// Package api provides typed bindings for the appointment-booking REST
// API on top of the authentication-aware request pipeline. Callers never
// deal with tokens here; attachment, refresh and retry are the
// pipeline's business.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ajay020/slotbook/pipeline"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client wraps the pipeline with endpoint-shaped methods.
type Client struct {
	pipe *pipeline.Client
	log  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the API client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates an API client over the given pipeline.
func New(pipe *pipeline.Client, options ...Option) (*Client, error) {
	if pipe == nil {
		return nil, errors.New("[api.New] pipeline is required")
	}
	c := &Client{pipe: pipe, log: zerolog.Nop()}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// send issues the request and maps non-2xx responses to errors. A 401
// that survived the pipeline's refresh-and-retry is surfaced as
// ErrAuthorizationExpired; everything else becomes a RemoteError carrying
// the server's msg field.
func (c *Client) send(ctx context.Context, req pipeline.Request, out any) error {
	resp, err := c.pipe.Send(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		if resp.StatusCode == http.StatusUnauthorized {
			return errors.Wrapf(pipeline.ErrAuthorizationExpired, "[api.send] %s %s", req.Method, req.Path)
		}
		return &RemoteError{StatusCode: resp.StatusCode, Message: remoteMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// remoteMessage pulls the msg field the API uses for human-readable
// errors.
func remoteMessage(body []byte) string {
	var payload struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Msg
}
