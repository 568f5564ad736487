package api

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates the fixed request deadline elapsed before the
	// server answered.
	ErrTimeout = errors.New("request timeout: server not responding")
	// ErrUnreachable indicates the server could not be reached at all.
	ErrUnreachable = errors.New("cannot connect to server")
)

// StatusError is a non-2xx response, carrying the server's message when one
// was provided.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == 401
}
