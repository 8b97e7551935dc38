package usecase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// PlayerNotFoundError is returned when a name query matches nobody. It
// matches ErrNotFound and carries the closest known names.
type PlayerNotFoundError struct {
	Query       string
	Suggestions []string
}

func (e *PlayerNotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%s: player %q", ErrNotFound, e.Query)
	}
	return fmt.Sprintf("%s: player %q, did you mean %s", ErrNotFound, e.Query, strings.Join(e.Suggestions, ", "))
}

func (e *PlayerNotFoundError) Unwrap() error {
	return ErrNotFound
}
