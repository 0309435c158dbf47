package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Session errors
	ErrNoSession      = errors.New("no session")
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidRole    = errors.New("invalid role")
	ErrStorageClosed  = errors.New("session storage closed")
	ErrInvalidMessage = errors.New("invalid session message")
	ErrAlreadyStarted = errors.New("session manager already started")

	// Authentication errors (development backend)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
