// SPDX-License-Identifier: AGPL-3.0-only
package vkapi

import (
	"encoding/json"
	"strings"
)

// Wall is a posting destination (a VK community).
type Wall struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// User is a VK account linked to the backend.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PostCount *int64 `json:"postCount,omitempty"`
}

type Collection struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Groups []Wall `json:"groups"`
}

// Has reports whether the wall is a member of the collection.
func (c Collection) Has(id int64) bool {
	for _, g := range c.Groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

// CallbackResponse is the answer to the authorization code exchange.
// "access" is loosely typed by the backend: a token string or a flag, in
// which case the token travels in "message".
type CallbackResponse struct {
	Access  json.RawMessage `json:"access,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Token returns the session token carried by the response, or "" when the
// account was linked without starting a session.
func (r CallbackResponse) Token() string {
	access := strings.TrimSpace(string(r.Access))
	switch access {
	case "", "null", "false", "0", `""`:
		return ""
	}

	if r.Message != "" {
		return r.Message
	}

	var s string
	if err := json.Unmarshal(r.Access, &s); err == nil {
		return s
	}
	return ""
}
