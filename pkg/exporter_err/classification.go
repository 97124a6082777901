// pkg/exporter_err/classification.go
//
// Error classification with exit codes for the exporter CLI.

package exporter_err

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies errors for appropriate handling
type ErrorCategory int

const (
	// CategorySystem - OS/filesystem issues (exit 1)
	CategorySystem ErrorCategory = iota
	// CategoryValidation - configuration or flag validation failures (exit 2)
	CategoryValidation
	// CategoryDependency - borgmatic missing or too old (exit 1)
	CategoryDependency
	// CategoryCollection - borgmatic output could not be turned into metrics (exit 1)
	CategoryCollection
	// CategoryInternal - bugs in the exporter itself (exit 3)
	CategoryInternal
)

// ClassifiedError wraps an error with category and remediation info
type ClassifiedError struct {
	Category    ErrorCategory
	Message     string
	Cause       error
	Remediation []string
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)

	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf("\n\nCause: %v", e.Cause))
	}

	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error category
func (e *ClassifiedError) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryInternal:
		return 3
	default:
		return 1
	}
}

// GetExitCode extracts exit code from any error.
// Returns 0 for nil and for expected user errors, the category code for
// classified errors, 1 for everything else.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.ExitCode()
	}

	if IsExpectedUserError(err) {
		return 0
	}

	return 1
}

// NewValidationError creates an error for configuration validation failures
func NewValidationError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryValidation,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewDependencyError creates an error for a missing or unusable dependency
func NewDependencyError(dependency, operation string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryDependency,
		Message:     fmt.Sprintf("%s is required for %s but is not usable", dependency, operation),
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewCollectionError creates an error for a failed collection pass
func NewCollectionError(message string, cause error) error {
	return &ClassifiedError{
		Category: CategoryCollection,
		Message:  message,
		Cause:    cause,
	}
}

// NewInternalError creates an error for exporter bugs
func NewInternalError(message string, cause error) error {
	return &ClassifiedError{
		Category: CategoryInternal,
		Message:  message,
		Cause:    cause,
		Remediation: []string{
			"This is likely a bug in borgmatic-exporter",
			"Include this error message and steps to reproduce when reporting it",
		},
	}
}
