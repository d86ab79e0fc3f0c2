package api

import (
	"context"
	"net/http"

	"github.com/ajay020/slotbook/pipeline"
	"github.com/ajay020/slotbook/session"
	"github.com/pkg/errors"
)

// Credentials is the payload the auth endpoints return on success: the
// bearer pair plus the user record, exactly what Session.Login expects.
type Credentials struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	User         session.UserRecord `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges an email and password for a credential set.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	if email == "" || password == "" {
		return nil, errors.Wrap(ErrValidation, "[Client.Login] email and password are required")
	}

	var creds Credentials
	err := c.send(ctx, pipeline.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{Email: email, Password: password},
	}, &creds)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

// Register creates an account and returns a credential set, logging the
// new user straight in.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Credentials, error) {
	if name == "" || email == "" || password == "" {
		return nil, errors.Wrap(ErrValidation, "[Client.Register] name, email and password are required")
	}

	var creds Credentials
	err := c.send(ctx, pipeline.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   registerRequest{Name: name, Email: email, Password: password},
	}, &creds)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}
