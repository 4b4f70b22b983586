// Copyright Contributors to the Open Cluster Management project
package auth

import (
	"errors"
	"fmt"
)

// AuthError indicates the cluster authorization source rejected the
// credential. It always surfaces to the caller and is never retried.
type AuthError struct {
	Identity string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication rejected for user %s", e.Identity)
	}
	return fmt.Sprintf("authentication rejected for user %s: %s", e.Identity, e.Err.Error())
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
