package remote

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig   = errors.New("invalid remote config")
	ErrInvalidResponse = errors.New("invalid response from key service")
)

// APIError is returned when the key service answers with a non-2xx status
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("key service: %s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("key service: %s %s: %d", e.Method, e.Path, e.StatusCode)
}

// IsAPIError reports whether err is an *APIError with the given status code.
// A zero status matches any APIError.
func IsAPIError(err error, status int) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return status == 0 || ae.StatusCode == status
}
