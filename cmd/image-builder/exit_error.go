// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/openchami/image-builder/internal/buildah"
	"github.com/openchami/image-builder/internal/config"
	"github.com/openchami/image-builder/internal/installer"
	"github.com/openchami/image-builder/internal/issue"
	"github.com/openchami/image-builder/internal/layer"
	"github.com/openchami/image-builder/internal/oscap"
	"github.com/openchami/image-builder/pkg/cueutil"
	"github.com/openchami/image-builder/pkg/layerdef"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitStepFailure   = 3
	ExitInterrupted   = 130
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps an error returned by a command to the process exit code.
// Interruption is checked first: a cancelled step is both interrupted and failed.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, layer.ErrInterrupted), errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, layer.ErrConfiguration),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, cueutil.ErrValidation),
		errors.Is(err, layerdef.ErrInvalidBuildSpec):
		return ExitConfiguration
	case errors.Is(err, layer.ErrStepFailure):
		return ExitStepFailure
	default:
		return ExitFailure
	}
}

// issueFor picks the troubleshooting guide for err, preferring the one an
// ActionableError links explicitly.
func issueFor(err error) *issue.Issue {
	if is := issue.IssueOf(err); is != nil {
		return is
	}

	var stepErr *layer.StepError
	switch {
	case errors.Is(err, layer.ErrInterrupted):
		return issue.Get(issue.BuildInterruptedId)
	case errors.Is(err, buildah.ErrUnsupportedVersion):
		return issue.Get(issue.BuildahTooOldId)
	case errors.Is(err, layer.ErrToolInvocation):
		return issue.Get(issue.BuildahNotFoundId)
	case errors.Is(err, oscap.ErrMissingSetting), errors.Is(err, oscap.ErrUnknownSetting):
		return issue.Get(issue.ScanConfigInvalidId)
	case errors.As(err, &stepErr):
		return issue.Get(stepIssue(stepErr.Step))
	}
	return nil
}

func stepIssue(step installer.Step) issue.Id {
	switch step {
	case installer.StepRepos, installer.StepPackageGroups, installer.StepPackages,
		installer.StepModules, installer.StepRemovePackages:
		return issue.PackageInstallFailedId
	case layer.StepPlaybooks:
		return issue.PlaybookFailedId
	case layer.StepPublish:
		return issue.PublishFailedId
	case layer.StepScan:
		return issue.ScanConfigInvalidId
	default:
		return issue.CommandFailedId
	}
}
