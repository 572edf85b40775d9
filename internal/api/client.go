package api

import (
	"context"
	"net/http"
	"net/url"

	"kenivoire-client/internal/gateway"
	"kenivoire-client/internal/model"
	"kenivoire-client/internal/session"
)

// Client exposes the backend's REST surface as typed methods. Every call
// goes through the gateway; no method ever touches the credential pair.
type Client struct {
	gw     *gateway.Gateway
	tokens *session.Store
}

func New(gw *gateway.Gateway, tokens *session.Store) *Client {
	return &Client{gw: gw, tokens: tokens}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.gw.Call(ctx, gateway.Spec{Method: method, Path: path, Query: query, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Login exchanges credentials for a token pair and installs the Session.
func (c *Client) Login(ctx context.Context, username, password string) (session.Session, error) {
	var pair model.TokenPair
	err := c.do(ctx, http.MethodPost, "auth/token/", nil,
		map[string]string{"username": username, "password": password}, &pair)
	if err != nil {
		return session.Session{}, err
	}

	sess, err := session.FromTokenPair(pair)
	if err != nil {
		return session.Session{}, err
	}
	if err := c.tokens.Set(sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// Logout destroys the Session. Purely local; the backend keeps no
// session state beyond the refresh token's own lifetime.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

func (c *Client) Register(ctx context.Context, input RegisterInput) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPost, "auth/register/", nil, input, &user)
	return user, err
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodGet, "auth/me/", nil, nil, &user)
	return user, err
}

func (c *Client) UpdateProfile(ctx context.Context, patch map[string]any) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPatch, "auth/me/", nil, patch, &user)
	return user, err
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return c.do(ctx, http.MethodPost, "auth/change-password/", nil,
		map[string]string{"old_password": oldPassword, "new_password": newPassword}, nil)
}
