package health

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is matched by every InvalidArgumentError.
	ErrInvalidArgument = errors.New("health: invalid argument")

	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrCheckFailed indicates a health check failed.
	ErrCheckFailed = errors.New("health: check failed")
)

// InvalidArgumentError reports a malformed registry call.
type InvalidArgumentError struct {
	Op     string
	Name   string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("health: %s %q: %s", e.Op, e.Name, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidArgument) succeed.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}
