package playbox

import (
	"fmt"
	"net/http"
	"strings"

	"playbox/internal/core"
)

// Errors callers match with errors.Is. They alias the core sentinels so the
// memory backend and the REST client report failures the same way.
var (
	ErrNotFound            = core.ErrNotFound
	ErrInsufficientBalance = core.ErrInsufficientBalance
	ErrUnavailable         = core.ErrBackendUnavailable
)

// APIError is a non-2xx answer from the PlayBox backend.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("playbox %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("playbox %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrInsufficientBalance:
		return strings.Contains(strings.ToLower(e.Message), "insufficient")
	case core.ErrCardAlreadyLinked:
		return e.StatusCode == http.StatusConflict
	case ErrUnavailable:
		return e.StatusCode >= 500
	}
	return false
}

// clientError reports 4xx answers. They say nothing about backend health.
func (e *APIError) clientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
