// Package auth drives the register/login/refresh flows against the
// storefront token endpoints and keeps the credential store up to date.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/shopfront/internal/credstore"
	"github.com/Skotchmaster/shopfront/internal/gateway"
	"github.com/Skotchmaster/shopfront/internal/models"
)

type Client struct {
	GW    *gateway.Client
	Creds *credstore.Store
	Log   *slog.Logger
}

// Register creates an account. It does not sign the user in; the original
// flow asks for an explicit login afterwards.
func (a *Client) Register(ctx context.Context, username, email, password string) error {
	req := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	resp, err := a.GW.Do(ctx, http.MethodPost, "/api/register/", req, false)
	if err != nil {
		return err
	}
	return resp.Err()
}

// Login obtains a token pair and stores it.
func (a *Client) Login(ctx context.Context, username, password string) error {
	req := map[string]string{
		"username": username,
		"password": password,
	}
	resp, err := a.GW.Do(ctx, http.MethodPost, "/api/token/", req, false)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}

	var pair models.TokenPair
	if err := resp.DecodeJSON(&pair); err != nil {
		return err
	}
	if err := a.Creds.SetTokens(pair.Access, pair.Refresh); err != nil {
		return err
	}
	a.Log.Info("signed in", "username", username)
	return nil
}

// Refresh exchanges the stored refresh token for a fresh access token.
// Callers invoke it after an AuthRejected failure; nothing retries it
// automatically.
func (a *Client) Refresh(ctx context.Context) error {
	req := map[string]string{"refresh": a.Creds.Refresh()}
	resp, err := a.GW.Do(ctx, http.MethodPost, "/api/token/refresh/", req, false)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}

	var pair models.TokenPair
	if err := resp.DecodeJSON(&pair); err != nil {
		return err
	}
	return a.Creds.SetTokens(pair.Access, pair.Refresh)
}

// Logout drops the stored tokens. Purely local, as in the original client.
func (a *Client) Logout() error {
	if err := a.Creds.Clear(); err != nil {
		return err
	}
	a.Log.Info("signed out")
	return nil
}
