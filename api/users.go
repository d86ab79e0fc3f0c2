package api

import (
	"context"
	"net/http"

	"github.com/ajay020/slotbook/pipeline"
	"github.com/ajay020/slotbook/session"
	"github.com/pkg/errors"
)

type updateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Me fetches the authoritative profile of the logged-in user.
func (c *Client) Me(ctx context.Context) (*session.UserRecord, error) {
	var user session.UserRecord
	err := c.send(ctx, pipeline.Request{
		Method: http.MethodGet,
		Path:   "/users/me",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMe updates the profile name and email and returns the stored
// record.
func (c *Client) UpdateMe(ctx context.Context, name, email string) (*session.UserRecord, error) {
	if name == "" || email == "" {
		return nil, errors.Wrap(ErrValidation, "[Client.UpdateMe] name and email are required")
	}

	var user session.UserRecord
	err := c.send(ctx, pipeline.Request{
		Method: http.MethodPut,
		Path:   "/users/me",
		Body:   updateProfileRequest{Name: name, Email: email},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
