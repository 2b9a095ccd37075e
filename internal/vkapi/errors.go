// SPDX-License-Identifier: AGPL-3.0-only
package vkapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

var (
	ErrNoToken           = errors.New("access token not found")
	ErrUnauthorized      = errors.New("backend rejected the access token")
	ErrMalformedResponse = errors.New("malformed backend response")
)

const maxDetailLen = 500

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// IsAuthError reports whether err means the operator has to sign in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNoToken)
}

func newAPIError(status int, contentType string, body []byte) *APIError {
	return &APIError{Status: status, Detail: extractDetail(contentType, body)}
}

func extractDetail(contentType string, body []byte) string {
	var detail string

	switch {
	case strings.Contains(contentType, "html"):
		detail = stripHTMLToText(string(body))
	case json.Valid(body):
		detail = jsonDetail(body)
	default:
		detail = strings.TrimSpace(string(body))
	}

	if len(detail) > maxDetailLen {
		detail = detail[:maxDetailLen] + "…"
	}
	return detail
}

// jsonDetail prefers the "detail", "message" or "error" field, falling back
// to the raw document.
func jsonDetail(body []byte) string {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return strings.TrimSpace(string(body))
	}

	for _, key := range []string{"detail", "message", "error"} {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return strings.TrimSpace(string(body))
}

func stripHTMLToText(input string) string {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return ""
	}

	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteString(" ")
				}
				b.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}
