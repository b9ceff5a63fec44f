package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a key is empty or a set value is nil.
	ErrInvalidArgument = errors.New("cache: invalid argument")

	// ErrBackendUnavailable is returned when the remote tier cannot be reached.
	ErrBackendUnavailable = errors.New("cache: backend unavailable")

	// ErrDisposed is returned for any operation on a closed provider.
	ErrDisposed = errors.New("cache: provider disposed")

	// ErrMissingName is returned when a provider is built without a name. It
	// wraps ErrInvalidArgument.
	ErrMissingName = fmt.Errorf("%w: instance name is required", ErrInvalidArgument)
)
