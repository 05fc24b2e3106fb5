package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredentials = errors.New("api key and api secret are required")
	ErrNotLoggedIn        = errors.New("not logged in to kite")
	ErrMissingNotebook    = errors.New("colab notebook url is required")
	ErrLoginInProgress    = errors.New("login already in progress")
)

// ValidationError is a precondition failure. The workflow aborted before
// changing state and told the user through a notification.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "validation: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// SimulatedFailure is an error raised by a collaborator (broker, simulator)
// after validation passed. Flags the workflow had set are reset.
type SimulatedFailure struct {
	Op  string
	Err error
}

func (e *SimulatedFailure) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *SimulatedFailure) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
