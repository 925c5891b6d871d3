package service

import (
	"errors"
	"fmt"
	"time"
)

// Gateway error taxonomy. Validation-class errors are answered to the sender
// only and never logged as system faults; persistence errors surface as a
// generic server error.
var (
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrIdentityMismatch = fmt.Errorf("%w: identity mismatch", ErrInvalidPayload)
	ErrNotJoined        = errors.New("connection has not joined")
)

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
