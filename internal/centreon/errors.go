package centreon

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type AuthErrorKind string

const (
	AuthTimeout            AuthErrorKind = "timeout"
	AuthNetwork            AuthErrorKind = "network_error"
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthForbidden          AuthErrorKind = "forbidden"
	AuthUnknown            AuthErrorKind = "unknown"
)

// AuthError is returned by Authenticate. StatusCode is 0 when no HTTP
// response was received.
type AuthError struct {
	Kind       AuthErrorKind
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthInvalidCredentials:
		return "authentication failed: invalid credentials (HTTP 401)"
	case AuthForbidden:
		return "authentication failed: access denied (HTTP 403)"
	}
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

type FetchErrorKind string

const (
	FetchTimeout      FetchErrorKind = "timeout"
	FetchNetwork      FetchErrorKind = "network_error"
	FetchUnauthorized FetchErrorKind = "unauthorized" // stale or invalid token
	FetchUnknown      FetchErrorKind = "unknown"
)

type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchUnauthorized {
		return "alert retrieval failed: token expired or invalid (HTTP 401)"
	}
	if e.Err != nil {
		return fmt.Sprintf("alert retrieval failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("alert retrieval failed (%s)", e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

type AckErrorKind string

const (
	AckTimeout AckErrorKind = "timeout"
	AckNetwork AckErrorKind = "network_error"
	AckOther   AckErrorKind = "other"
)

// AcknowledgeError is always scoped to one service.
type AcknowledgeError struct {
	Kind       AckErrorKind
	ServiceID  int64
	HostID     int64
	StatusCode int
	Err        error
}

func (e *AcknowledgeError) Error() string {
	if e.Kind == AckTimeout {
		return fmt.Sprintf("acknowledgment timeout for service %d", e.ServiceID)
	}
	return fmt.Sprintf("failed to acknowledge service %d on host %d: %v", e.ServiceID, e.HostID, e.Err)
}

func (e *AcknowledgeError) Unwrap() error { return e.Err }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsUnauthorized reports whether err means the session token was refused.
func IsUnauthorized(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == FetchUnauthorized
	}
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == AuthInvalidCredentials
}
