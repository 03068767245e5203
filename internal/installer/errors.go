// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
)

const (
	// StepRepos installs repository files.
	StepRepos Step = "repos"
	// StepPackageGroups installs package groups.
	StepPackageGroups Step = "package-groups"
	// StepPackages installs packages.
	StepPackages Step = "packages"
	// StepModules runs module actions.
	StepModules Step = "modules"
	// StepRemovePackages erases packages.
	StepRemovePackages Step = "remove-packages"
	// StepCopyFiles copies host files into the container.
	StepCopyFiles Step = "copy-files"
	// StepCommands runs shell commands.
	StepCommands Step = "commands"
)

// ErrStepFailure is the sentinel error wrapped by StepError.
var ErrStepFailure = errors.New("build step failed")

type (
	// Step names one group of installer operations.
	Step string

	// StepError reports a step item that could not be applied.
	StepError struct {
		Step     Step
		Target   string
		ExitCode int
		Reason   string
		Err      error
	}
)

// String returns the step name.
func (s Step) String() string { return string(s) }

// Error implements the error interface.
func (e *StepError) Error() string {
	msg := string(e.Step)
	if e.Target != "" {
		msg += fmt.Sprintf(" %q", e.Target)
	}
	msg += ": " + e.Reason
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrStepFailure and the underlying cause.
func (e *StepError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrStepFailure, e.Err}
	}
	return []error{ErrStepFailure}
}
