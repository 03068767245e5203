// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/openchami/image-builder/internal/buildah"
	"github.com/openchami/image-builder/internal/config"
	"github.com/openchami/image-builder/internal/installer"
	"github.com/openchami/image-builder/internal/issue"
	"github.com/openchami/image-builder/internal/layer"
	"github.com/openchami/image-builder/internal/oscap"
	"github.com/openchami/image-builder/internal/runner"
	"github.com/openchami/image-builder/pkg/cueutil"
	"github.com/openchami/image-builder/pkg/layerdef"
)

func TestExitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	withCause := &ExitError{Code: 3, Err: cause}
	if withCause.Error() != "boom" || !errors.Is(withCause, cause) {
		t.Errorf("ExitError with cause = %q", withCause.Error())
	}
	if got := (&ExitError{Code: 2}).Error(); got != "exit status 2" {
		t.Errorf("ExitError without cause = %q", got)
	}
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"explicit exit error", fmt.Errorf("wrapped: %w", &ExitError{Code: 42}), 42},
		{"generic", errors.New("boom"), ExitFailure},
		{"configuration", &layer.ConfigurationError{Reason: "bad"}, ExitConfiguration},
		{"invalid config", &config.InvalidConfigError{Path: "parent", Err: errors.New("required")}, ExitConfiguration},
		{"schema validation", &cueutil.ValidationError{File: "layer.yaml"}, ExitConfiguration},
		{"build spec", fmt.Errorf("x: %w", layerdef.ErrInvalidBuildSpec), ExitConfiguration},
		{"step failure", &layer.StepError{Step: installer.StepPackages, Err: errors.New("dnf failed")}, ExitStepFailure},
		{"interrupted step", &layer.StepError{Step: installer.StepCommands, Err: runner.ErrInterrupted}, ExitInterrupted},
		{"canceled", context.Canceled, ExitInterrupted},
		{"old buildah", buildah.ErrUnsupportedVersion, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestIssueFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{
			name: "actionable error wins",
			err: issue.NewErrorContext().
				WithOperation("load layer").
				WithIssue(issue.LayerFileNotFoundId).
				Wrap(&layer.StepError{Step: installer.StepPackages, Err: errors.New("x")}).
				BuildError(),
			want: issue.LayerFileNotFoundId,
		},
		{"interrupted", runner.ErrInterrupted, issue.BuildInterruptedId},
		{"old buildah", fmt.Errorf("check: %w", buildah.ErrUnsupportedVersion), issue.BuildahTooOldId},
		{"buildah missing", &runner.ToolInvocationError{Argv: []string{"buildah", "version"}, Err: errors.New("not found")}, issue.BuildahNotFoundId},
		{"scan setting", fmt.Errorf("x: %w", oscap.ErrMissingSetting), issue.ScanConfigInvalidId},
		{"package step", &layer.StepError{Step: installer.StepPackageGroups, Err: errors.New("x")}, issue.PackageInstallFailedId},
		{"command step", &layer.StepError{Step: installer.StepCommands, Err: errors.New("x")}, issue.CommandFailedId},
		{"copy step", &layer.StepError{Step: installer.StepCopyFiles, Err: errors.New("x")}, issue.CommandFailedId},
		{"playbook step", &layer.StepError{Step: layer.StepPlaybooks, Err: errors.New("x")}, issue.PlaybookFailedId},
		{"publish step", &layer.StepError{Step: layer.StepPublish, Err: errors.New("x")}, issue.PublishFailedId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := issueFor(tt.err)
			if got == nil {
				t.Fatalf("issueFor(%v) = nil, want %d", tt.err, tt.want)
			}
			if got.Id() != tt.want {
				t.Errorf("issueFor(%v) = %d, want %d", tt.err, got.Id(), tt.want)
			}
		})
	}

	if got := issueFor(errors.New("unclassified")); got != nil {
		t.Errorf("issueFor(unclassified) = %d, want nil", got.Id())
	}
}
