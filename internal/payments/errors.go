package payments

import (
	"errors"
	"fmt"
)

// RetryableError marks a failure the payment processor should redeliver
// the event for: the webhook responds with a 5xx and the whole event runs
// again from the top, which every handler tolerates.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err so the delivery is retried. nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether the event should be redelivered.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

// FatalError marks a malformed or unprocessable event. Redelivery cannot
// fix it, so the webhook acknowledges and only logs it.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string {
	return e.Reason
}
