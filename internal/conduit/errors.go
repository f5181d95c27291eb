package conduit

import (
	"fmt"
	"time"
)

// AuthError means the API token was rejected. Fatal: retrying with the
// same credential cannot succeed.
type AuthError struct {
	Code string
	Info string
}

func (e *AuthError) Error() string {
	if e.Info != "" {
		return fmt.Sprintf("conduit authentication failed (%s): %s", e.Code, e.Info)
	}
	return fmt.Sprintf("conduit authentication failed (%s)", e.Code)
}

// RateLimitError means the remote asked us to back off. The caller may
// retry after RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("conduit rate limited, retry after %s", e.RetryAfter)
}

// ProtocolError covers malformed or unexpected responses, including
// application-level Conduit errors that are not auth failures. Fatal
// for the request.
type ProtocolError struct {
	Method string
	Code   string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("conduit %s failed (%s): %s", e.Method, e.Code, e.Reason)
	}
	return fmt.Sprintf("conduit %s failed: %s", e.Method, e.Reason)
}
