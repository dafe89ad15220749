package mattermost

import (
	"errors"
	"fmt"
)

// ErrNotReady marks gateway calls made before Initialize has completed.
// This is programmer misuse: the call fails immediately and is never queued.
var ErrNotReady = errors.New("mattermost client is not initialized")

// APIError normalizes every transport failure into one vocabulary shared with
// the retry executor. Status is zero for network-level failures.
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	switch {
	case e.Status > 0 && e.Message != "":
		return fmt.Sprintf("mattermost %s: http %d: %s", e.Op, e.Status, e.Message)
	case e.Status > 0:
		return fmt.Sprintf("mattermost %s: http %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("mattermost %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("mattermost %s: %s", e.Op, e.Message)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusCode satisfies retry.StatusCoder.
func (e *APIError) StatusCode() int { return e.Status }

// Retryable mirrors the retry executor's classification for callers that
// want the flag without importing the executor.
func (e *APIError) Retryable() bool {
	switch e.Status {
	case 0, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
