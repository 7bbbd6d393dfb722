package postcache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is wrapped by errors caused by caller input, such as
	// an unknown retry kind.
	ErrInvalidArgument = errors.New("postcache: invalid argument")

	// ErrNilAPI is returned by New when no remote API is supplied.
	ErrNilAPI = errors.New("postcache: remote api is required")
)

// NetworkError reports a transport failure or a non-2xx answer from the
// remote collection. Its message is what the store records in the error slot.
type NetworkError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: request failed with status code %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": network error"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err (or anything it wraps) is a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
