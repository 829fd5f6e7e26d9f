// Package apierror classifies storefront API failures so callers can react
// to the kind of failure instead of parsing status codes everywhere.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuthRequired means the operation needs a signed-in user and no
	// token was present. Detected before any network call.
	ErrAuthRequired = errors.New("authentication required")
	// ErrAuthRejected means the server refused the presented token (401/403).
	ErrAuthRejected = errors.New("authentication rejected")
	ErrValidation   = errors.New("validation")
	ErrServer       = errors.New("server error")
	ErrNetwork      = errors.New("network failure")
)

// FromStatus maps a non-2xx response to a typed error. Returns nil for 2xx.
// The server's error body (DRF-style {"detail": ...} or field errors) is kept
// in the message so the UI can show it.
func FromStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("status %d: %s: %w", status, detail(body), ErrAuthRejected)
	case status >= 400 && status < 500:
		return fmt.Errorf("status %d: %s: %w", status, detail(body), ErrValidation)
	default:
		return fmt.Errorf("status %d: %w", status, ErrServer)
	}
}

// Network wraps a transport-level failure (DNS, refused connection, timeout).
func Network(err error) error {
	return fmt.Errorf("%v: %w", err, ErrNetwork)
}

func detail(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil || len(m) == 0 {
		if s := strings.TrimSpace(string(body)); s != "" {
			return s
		}
		return "no error detail"
	}
	if d, ok := m["detail"].(string); ok {
		return d
	}
	if e, ok := m["error"].(string); ok {
		return e
	}
	// field errors: {"quantity": ["..."]}
	parts := make([]string, 0, len(m))
	for field, v := range m {
		parts = append(parts, fmt.Sprintf("%s: %v", field, v))
	}
	return strings.Join(parts, "; ")
}
