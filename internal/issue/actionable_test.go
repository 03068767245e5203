// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "build layer"},
			expected: "failed to build layer",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "load layer definition", Resource: "compute.yaml"},
			expected: "failed to load layer definition: compute.yaml",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "load layer definition",
				Resource:  "compute.yaml",
				Cause:     errors.New("file not found"),
			},
			expected: "failed to load layer definition: compute.yaml: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 104")
	err := &ActionableError{Operation: "install packages", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if (&ActionableError{Operation: "x"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("connection refused")
	err := &ActionableError{
		Operation:   "publish layer",
		Resource:    "compute-base",
		Suggestions: []string{"Check the S3 endpoint", "Check credentials"},
		Cause:       fmt.Errorf("upload rootfs: %w", root),
	}

	plain := err.Format(false)
	for _, want := range []string{"failed to publish layer: compute-base", "• Check the S3 endpoint", "• Check credentials"} {
		if !strings.Contains(plain, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "Error chain") {
		t.Error("Format(false) should not include the error chain")
	}

	verbose := err.Format(true)
	for _, want := range []string{"Error chain:", "1. upload rootfs: connection refused", "2. connection refused"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) missing %q:\n%s", want, verbose)
		}
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("scan image").
		WithResource("registry.local/compute:latest").
		WithSuggestion("first").
		WithSuggestion("second").
		WithIssue(ScanConfigInvalidId).
		Wrap(cause).
		Build()

	if ae == nil {
		t.Fatal("Build() returned nil")
	}
	if ae.Operation != "scan image" || ae.Resource != "registry.local/compute:latest" {
		t.Errorf("unexpected context: %+v", ae)
	}
	if len(ae.Suggestions) != 2 || !ae.HasSuggestions() {
		t.Errorf("suggestions = %v", ae.Suggestions)
	}
	if ae.Issue != ScanConfigInvalidId || !errors.Is(ae, cause) {
		t.Errorf("unexpected issue or cause: %+v", ae)
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	t.Parallel()

	if ae := NewErrorContext().WithResource("x").Build(); ae != nil {
		t.Errorf("Build() = %v, want nil", ae)
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() = %v, want untyped nil", err)
	}
}

func TestIssueOf(t *testing.T) {
	t.Parallel()

	linked := NewErrorContext().WithOperation("build layer").WithIssue(PublishFailedId).BuildError()
	if got := IssueOf(fmt.Errorf("wrapped: %w", linked)); got == nil || got.Id() != PublishFailedId {
		t.Errorf("IssueOf() = %v, want PublishFailedId", got)
	}

	unlinked := NewErrorContext().WithOperation("build layer").BuildError()
	if got := IssueOf(unlinked); got != nil {
		t.Errorf("IssueOf(unlinked) = %v, want nil", got)
	}
	if got := IssueOf(errors.New("plain")); got != nil {
		t.Errorf("IssueOf(plain) = %v, want nil", got)
	}
}
