// SPDX-License-Identifier: AGPL-3.0-only
package vkapi

import (
	"context"
	"net/http"
	"net/url"
)

// CodeExchange is the data the backend needs to trade an authorization code
// for a session token.
type CodeExchange struct {
	Code         string
	DeviceID     string
	State        string
	CodeVerifier string
}

// ExchangeCode is the only unauthenticated call.
func (c *Client) ExchangeCode(ctx context.Context, ex CodeExchange) (*CallbackResponse, error) {
	q := url.Values{}
	q.Set("code", ex.Code)
	q.Set("device_id", ex.DeviceID)
	q.Set("state", ex.State)
	q.Set("code_verifier", ex.CodeVerifier)

	req, err := c.newRequest(ctx, http.MethodPost, "/users/callback", q, nil)
	if err != nil {
		return nil, err
	}

	var resp CallbackResponse
	if err := c.do(req, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetUsers(ctx context.Context, store TokenStore) ([]User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/vk/get_users", nil, nil)
	if err != nil {
		return nil, err
	}

	var users []User
	if err := c.do(req, store, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// IsAuthenticated probes the backend with a cheap authenticated call. It
// never returns an error: any failure, including a missing token, is false.
func (c *Client) IsAuthenticated(ctx context.Context, store TokenStore) bool {
	if store == nil || store.Token() == "" {
		return false
	}
	_, err := c.GetUsers(ctx, store)
	return err == nil
}
