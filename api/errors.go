// ABOUTME: Error types returned by the courier API client
// ABOUTME: Non-2xx answers become *Error; 401s also match ErrUnauthorized

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches any *Error carrying a 401
var ErrUnauthorized = errors.New("unauthorized")

// Error is a non-2xx response from the courier API
type Error struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}
