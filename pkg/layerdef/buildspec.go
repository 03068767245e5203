// SPDX-License-Identifier: MPL-2.0

package layerdef

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBuildSpec is the sentinel error wrapped by InvalidBuildSpecError.
var ErrInvalidBuildSpec = errors.New("invalid build spec")

type (
	// AnsibleSpec configures the ansible build kind.
	AnsibleSpec struct {
		Groups    []string
		Playbooks []string
		Inventory []string
		Vars      map[string]string
		Verbosity int
	}

	// ScapSpec selects the compliance scans run after the shell commands.
	ScapSpec struct {
		Install   bool
		Benchmark bool
		OvalEval  bool
		// Vars override the scanner defaults (profile, benchmark_path, oval_url, ...).
		Vars map[string]string
	}

	// BuildSpec is the immutable configuration of one layer build.
	BuildSpec struct {
		Name           string
		Parent         string
		LayerType      LayerType
		PackageManager PackageManagerKind
		Repos          []Repo
		Packages       []string
		PackageGroups  []string
		RemovePackages []string
		Modules        []ModuleCommand
		Commands       []Command
		CopyFiles      []CopyFile
		Publish        PublishSpec
		Proxy          string
		GPGCheck       bool
		PullOpts       []string
		Ansible        AnsibleSpec
		Scap           ScapSpec
	}

	// InvalidBuildSpecError collects every validation failure of a BuildSpec.
	InvalidBuildSpecError struct {
		Errs []error
	}
)

// NewBuildSpec validates spec and returns a copy that callers treat as read-only.
// The publish parent reference defaults to the build parent.
func NewBuildSpec(spec BuildSpec) (*BuildSpec, error) {
	if spec.Publish.ParentRef == "" {
		spec.Publish.ParentRef = spec.Parent
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// IsScratch reports whether the build starts from an empty image.
func (s *BuildSpec) IsScratch() bool { return s.Parent == ScratchParent }

// Validate checks every record of the spec and reports all failures at once.
func (s *BuildSpec) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	} else if strings.ContainsAny(s.Name, ": \t\n") {
		errs = append(errs, fmt.Errorf("name %q must not contain ':' or whitespace", s.Name))
	}
	if strings.TrimSpace(s.Parent) == "" {
		errs = append(errs, errors.New("parent is required (use \"scratch\" for an empty image)"))
	}
	if isValid, verrs := s.LayerType.IsValid(); !isValid {
		errs = append(errs, verrs...)
	}

	switch s.LayerType {
	case LayerTypeBase:
		if isValid, verrs := s.PackageManager.IsValid(); !isValid {
			errs = append(errs, verrs...)
		}
	case LayerTypeAnsible:
		if len(s.Ansible.Playbooks) == 0 {
			errs = append(errs, errors.New("ansible layers require at least one playbook"))
		}
		if s.Ansible.Verbosity < 0 {
			errs = append(errs, errors.New("ansible verbosity must not be negative"))
		}
	}

	seen := make(map[string]bool, len(s.Repos))
	for _, r := range s.Repos {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[r.Alias] {
			errs = append(errs, &InvalidRepoError{Alias: r.Alias, Reason: "alias is defined more than once"})
		}
		seen[r.Alias] = true
	}
	for _, m := range s.Modules {
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range s.Commands {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, f := range s.CopyFiles {
		if err := f.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Publish.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return &InvalidBuildSpecError{Errs: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidBuildSpecError) Error() string {
	if len(e.Errs) == 1 {
		return fmt.Sprintf("invalid build spec: %v", e.Errs[0])
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid build spec (%d errors):", len(e.Errs))
	for _, err := range e.Errs {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap returns ErrInvalidBuildSpec and every collected error.
func (e *InvalidBuildSpecError) Unwrap() []error {
	return append([]error{ErrInvalidBuildSpec}, e.Errs...)
}
