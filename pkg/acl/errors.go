// Copyright Contributors to the Open Cluster Management project
package acl

import (
	"errors"
	"fmt"
)

// ErrSyncExhausted reports that a sync cycle failed on every retry attempt.
// The condition is recoverable: the next request that touches the same user
// triggers a fresh cycle.
var ErrSyncExhausted = errors.New("acl document sync failed after all retry attempts")

// ConfigurationError indicates the store holds an unparseable document on
// the first-ever seed. That is a deployment problem, not a race, so it is
// surfaced immediately and never retried.
type ConfigurationError struct {
	Kind string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("stored %s document is malformed: %s", e.Kind, e.Err.Error())
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var confErr *ConfigurationError
	return errors.As(err, &confErr)
}
