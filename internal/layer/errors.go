// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"context"
	"errors"
	"fmt"

	"github.com/openchami/image-builder/internal/installer"
	"github.com/openchami/image-builder/internal/runner"
)

var (
	// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
	ErrConfiguration = errors.New("invalid build configuration")

	// ErrStepFailure matches any failed build step.
	ErrStepFailure = installer.ErrStepFailure

	// ErrToolInvocation matches a tool that could not be started.
	ErrToolInvocation = runner.ErrToolInvocation

	// ErrInterrupted matches a build stopped by context cancellation.
	ErrInterrupted = runner.ErrInterrupted
)

type (
	// StepError reports the build step that failed.
	StepError = installer.StepError

	// ConfigurationError is returned before any container is created when the
	// spec cannot be built as given.
	ConfigurationError struct {
		Reason string
		Err    error
	}
)

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

// Unwrap returns ErrConfiguration and the underlying cause.
func (e *ConfigurationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfiguration, e.Err}
	}
	return []error{ErrConfiguration}
}

// classify leaves typed errors alone and turns anything else into a
// StepError for step.
func classify(step installer.Step, err error) error {
	switch {
	case errors.Is(err, ErrInterrupted),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrStepFailure),
		errors.Is(err, ErrToolInvocation):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", step, ErrInterrupted, err)
	}
	return &StepError{Step: step, Reason: "failed", Err: err}
}
