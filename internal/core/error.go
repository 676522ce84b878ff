package core

/*
rxglyph — fast tool in Go for hunting homoglyph lookalike domains
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import "errors"

// customError is an error that knows whether the failed operation may be retried.
type customError struct {
	message   string
	retryable bool
}

// NewError returns an error carrying msg and a retryable flag. Transient conditions such as
// a full worker queue are retryable; shutdown is not.
func NewError(msg string, retryable bool) error {
	return &customError{
		message:   msg,
		retryable: retryable,
	}
}

// Error implements the error interface.
func (e *customError) Error() string {
	return e.message
}

// IsRetryable reports the retryable flag.
func (e *customError) IsRetryable() bool {
	return e.retryable
}

// IsRetryable reports whether err, or any error it wraps, is a retryable customError.
// Other errors, and nil, are not retryable.
func IsRetryable(err error) bool {
	var ce *customError
	if errors.As(err, &ce) {
		return ce.IsRetryable()
	}
	return false
}

// Common error values of the core package.
var (
	// ErrQueueFull is returned by SubmitWork when the target worker queue is at capacity.
	// It is retryable.
	ErrQueueFull = NewError("queue full", true)
	// ErrWorkerShutdown is returned once the scheduler has been shut down.
	ErrWorkerShutdown = NewError("worker shutdown", false)
)
