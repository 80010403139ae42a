package storage

import "github.com/fairgrounds/deltashare/pkg/errors"

// Storage-specific error codes
var (
	// ErrUnavailable covers transient backend failures (connection resets,
	// 5xx responses, timeouts). Eligible for retry.
	ErrUnavailable = errors.MustNewCode("storage.unavailable")

	// ErrDenied covers authentication/authorization failures from the
	// backend. Never retried.
	ErrDenied = errors.MustNewCode("storage.denied")

	// ErrNotFound covers missing buckets or objects. Never retried.
	ErrNotFound = errors.MustNewCode("storage.not_found")

	ErrClientSetupFailed = errors.MustNewCode("storage.client_setup_failed")
)

// IsTransient reports whether an error is worth retrying
func IsTransient(err error) bool {
	if errors.HasCode(err, ErrDenied) || errors.HasCode(err, ErrNotFound) {
		return false
	}
	return true
}
