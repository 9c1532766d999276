package token

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound means the operation referenced a uuid absent from the store.
	ErrAccountNotFound = errors.New("account not found")

	// ErrReauthenticationRequired means the access token expired and cannot be
	// refreshed. The user has to sign in again; retrying will not help.
	ErrReauthenticationRequired = errors.New("re-authentication required")

	// ErrNetworkFailure is a transient failure talking to the identity provider.
	ErrNetworkFailure = errors.New("identity provider unreachable")

	// ErrInvalidRefreshToken means the provider rejected the refresh token.
	ErrInvalidRefreshToken = errors.New("refresh token rejected")

	// ErrMalformedResponse means the provider answered with an unusable token
	// response. Callers may retry it like ErrNetworkFailure.
	ErrMalformedResponse = errors.New("malformed token response")

	// ErrInvalidArgument is returned for requests that can never succeed, such as an empty uuid.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error adds the operation and account to a lifecycle error.
type Error struct {
	Op   string
	UUID string
	Err  error
}

func (e *Error) Error() string {
	if e.UUID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.UUID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op, uuid string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, UUID: uuid, Err: err}
}

// IsRetryable reports whether the caller may retry err with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetworkFailure) || errors.Is(err, ErrMalformedResponse)
}
