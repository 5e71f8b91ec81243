package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable means no wallet extension was detected.
	ErrProviderUnavailable = errors.New("plug wallet not found: install the Plug extension")

	// ErrAuthenticationRejected matches every error raised because the
	// user or the identity provider refused the login.
	ErrAuthenticationRejected = errors.New("authentication rejected")

	// ErrConnectionRejected is returned when the wallet declined or failed
	// the connection request. It matches ErrAuthenticationRejected.
	ErrConnectionRejected error = &rejection{msg: "user rejected plug connection"}
)

type rejection struct{ msg string }

func (e *rejection) Error() string { return e.msg }

func (e *rejection) Is(target error) bool { return target == ErrAuthenticationRejected }

// AuthorizationError is the failure reported by the identity provider,
// for example "UserInterrupt" when the user closed the login window.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("identity provider refused authorization: %s", e.Reason)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthenticationRejected }
