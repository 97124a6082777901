// pkg/exporter_err/types.go

package exporter_err

import "errors"

// ErrNoRepository is returned when a borgmatic config produced no repository record.
var ErrNoRepository = errors.New("borgmatic returned no repository information")

// ErrUnsupportedVersion is returned when the installed borgmatic is too old for --json output.
var ErrUnsupportedVersion = errors.New("unsupported borgmatic version")

// UserError marks an error as expected and recoverable by the user.
type UserError struct {
	cause error
}

func (e *UserError) Error() string {
	return e.cause.Error()
}

func (e *UserError) Unwrap() error {
	return e.cause
}
