// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package metrc

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx upstream response. It carries the status code and
// request identity only; upstream response bodies are never attached so
// callers cannot leak credentials or upstream internals into logs or UIs.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metrc: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsAuthError reports whether err is an upstream 401 (invalid credentials).
func IsAuthError(err error) bool {
	return hasStatus(err, func(code int) bool { return code == http.StatusUnauthorized })
}

// IsForbidden reports whether err is an upstream 403 (license or permission
// mismatch).
func IsForbidden(err error) bool {
	return hasStatus(err, func(code int) bool { return code == http.StatusForbidden })
}

// IsRateLimited reports whether err is an upstream 429.
func IsRateLimited(err error) bool {
	return hasStatus(err, func(code int) bool { return code == http.StatusTooManyRequests })
}

// IsServerError reports whether err is an upstream 5xx.
func IsServerError(err error) bool {
	return hasStatus(err, func(code int) bool { return code >= 500 })
}

func hasStatus(err error, match func(int) bool) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return match(apiErr.StatusCode)
}
