package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dermlab/skinconsult-client/auth"
	"github.com/dermlab/skinconsult-client/models"
)

// Login authenticates with email and password and persists the returned
// bearer credential in the token store.
func (c *Client) Login(ctx context.Context, email, password string) (models.UserProfile, error) {
	payload, err := json.Marshal(models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return models.UserProfile{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/login", bytes.NewReader(payload), "application/json")
	if err != nil {
		return models.UserProfile{}, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return models.UserProfile{}, &models.AuthError{Status: status, Err: err}
	}
	if status != http.StatusOK {
		return models.UserProfile{}, &models.AuthError{Status: status, Err: bodyError(body)}
	}

	var resp models.LoginResponse
	if err := unwrap(body, &resp); err != nil {
		return models.UserProfile{}, &models.AuthError{Status: status, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if resp.Token == "" {
		return models.UserProfile{}, &models.AuthError{Status: status, Err: fmt.Errorf("login response carried no token")}
	}

	creds := auth.Credentials{Token: resp.Token}
	if resp.ExpiresAt != "" {
		if exp, perr := time.Parse(time.RFC3339, resp.ExpiresAt); perr == nil {
			creds.ExpiresAt = exp
		}
	}
	if err := c.store.Set(creds); err != nil {
		return models.UserProfile{}, fmt.Errorf("persist credential: %w", err)
	}
	zap.S().Infow("logged in", "userId", auth.Resolve(resp.Token).UserID)
	return resp.User, nil
}

// Register creates an account. It does not log the user in.
func (c *Client) Register(ctx context.Context, reg models.RegisterRequest) (models.UserProfile, error) {
	payload, err := json.Marshal(reg)
	if err != nil {
		return models.UserProfile{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/register", bytes.NewReader(payload), "application/json")
	if err != nil {
		return models.UserProfile{}, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return models.UserProfile{}, writeError("register", status, body, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return models.UserProfile{}, writeError("register", status, body, nil)
	}

	var profile models.UserProfile
	if err := unwrap(body, &profile); err != nil {
		return models.UserProfile{}, writeError("register", status, body, err)
	}
	return profile, nil
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (models.UserProfile, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/users/me", nil, "")
	if err != nil {
		return models.UserProfile{}, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return models.UserProfile{}, readError("get profile", status, body, err)
	}
	if status != http.StatusOK {
		return models.UserProfile{}, readError("get profile", status, body, nil)
	}

	var profile models.UserProfile
	if err := unwrap(body, &profile); err != nil {
		return models.UserProfile{}, readError("get profile", status, body, err)
	}
	return profile, nil
}

// Logout drops the stored credential.
func (c *Client) Logout() error {
	return c.store.Clear()
}
