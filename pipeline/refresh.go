package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ajay020/slotbook/credstore"
	"github.com/pkg/errors"
)

const refreshPath = "/auth/refresh-token"

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refresh exchanges the stored refresh token for a new pair. Concurrent
// callers are coalesced into a single in-flight exchange: every refresh
// token is single-use server-side, so racing exchanges would invalidate
// each other and log users out spuriously. All waiters receive the one
// resulting access token.
func (c *Client) refresh(ctx context.Context) (string, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		// ctx belongs to whichever request got here first; waiters
		// joining the flight share its fate.
		return c.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// exchange performs the actual refresh-token exchange over a plain,
// non-intercepted transport; going through Send here would re-enter the
// refresh protocol.
func (c *Client) exchange(ctx context.Context) (string, error) {
	// Tag the attempt with the session epoch. A logout during the
	// exchange advances the epoch and makes this result stale.
	epoch := c.bridge.Epoch()

	refreshToken, err := c.store.Get(credstore.KeyRefreshToken)
	if err != nil {
		return "", errors.Wrap(err, "[Client.exchange] read refresh token")
	}
	if refreshToken == "" {
		return "", errors.New("[Client.exchange] refresh token empty")
	}

	raw, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", errors.Wrap(err, "[Client.exchange] marshal")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader(raw))
	if err != nil {
		return "", errors.Wrap(err, "[Client.exchange] build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.refreshHTTP.Do(httpReq)
	if err != nil {
		return "", errors.Wrapf(ErrNetwork, "[Client.exchange] %v", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", errors.Wrapf(ErrNetwork, "[Client.exchange] read body: %v", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", errors.Errorf("[Client.exchange] refresh endpoint returned %d", httpResp.StatusCode)
	}

	var pair refreshResponse
	if err := json.Unmarshal(body, &pair); err != nil {
		return "", errors.Wrap(err, "[Client.exchange] decode response")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return "", errors.New("[Client.exchange] refresh endpoint returned incomplete pair")
	}

	if c.bridge.Epoch() != epoch {
		// The user logged out while the exchange was in flight. Discard
		// the new pair instead of resurrecting the session.
		c.log.Debug().Msg("discarding refresh result from a previous session epoch")
		return "", errors.Wrap(ErrSessionExpired, "[Client.exchange] session epoch advanced during exchange")
	}

	if err := c.store.Set(credstore.KeyAccessToken, pair.AccessToken); err != nil {
		return "", errors.Wrap(err, "[Client.exchange] persist access token")
	}
	if err := c.store.Set(credstore.KeyRefreshToken, pair.RefreshToken); err != nil {
		return "", errors.Wrap(err, "[Client.exchange] persist refresh token")
	}

	c.log.Debug().Int("access_token_len", len(pair.AccessToken)).Msg("refreshed credential pair")
	return pair.AccessToken, nil
}
