// Package storage holds what the persistence backends share: backend names and
// the classification of failures that are not otherwise meaningful to callers.
package storage

import (
	"errors"
	"fmt"
)

// Supported backends.
const (
	Postgres = "postgres"
	MongoDB  = "mongodb"
	Memory   = "memory"
)

// ErrUnavailable marks a persistence failure that no domain error describes
// (connection loss, timeouts, driver errors).
var ErrUnavailable = errors.New("storage unavailable")

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds while the
// driver error stays inspectable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// ValidBackend reports whether name is a supported backend.
func ValidBackend(name string) bool {
	switch name {
	case Postgres, MongoDB, Memory:
		return true
	}
	return false
}
