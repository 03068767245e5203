// SPDX-License-Identifier: MPL-2.0

package layerdef

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrInvalidCommand is the sentinel error wrapped by InvalidCommandError.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrInvalidCopyFile is the sentinel error wrapped by InvalidCopyFileError.
	ErrInvalidCopyFile = errors.New("invalid copy file")

	// ErrInvalidModuleCommand is the sentinel error wrapped by InvalidModuleCommandError.
	ErrInvalidModuleCommand = errors.New("invalid module command")
)

type (
	// Command is a shell command run inside the working container with bash -c.
	Command struct {
		Cmd      string
		LogLevel LogLevel
		// ExtraArgs are passed to "buildah run" before the container id.
		ExtraArgs []string
	}

	// InvalidCommandError is returned when a Command is empty or does not parse
	// as a shell program.
	InvalidCommandError struct {
		Cmd    string
		Reason string
		Err    error
	}

	// CopyFile copies a host path into the working container.
	CopyFile struct {
		Src  string
		Dest string
		// Opts are "buildah copy" options. Each entry may hold several
		// whitespace-separated arguments.
		Opts []string
	}

	// InvalidCopyFileError is returned when a CopyFile lacks a source or destination.
	InvalidCopyFileError struct {
		Src    string
		Dest   string
		Reason string
	}

	// ModuleCommand is one package-manager module sub-action (enable,
	// install, ...) applied to an ordered list of module targets.
	ModuleCommand struct {
		Action  string
		Modules []string
	}

	// InvalidModuleCommandError is returned when a ModuleCommand is malformed.
	InvalidModuleCommandError struct {
		Action string
		Reason string
	}
)

// Validate checks that the command is non-empty shell syntax. Any log level
// is accepted; unrecognized ones are routed to ERROR by LogLevel.Normalized.
func (c Command) Validate() error {
	if strings.TrimSpace(c.Cmd) == "" {
		return &InvalidCommandError{Cmd: c.Cmd, Reason: "cmd must not be empty"}
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(c.Cmd), ""); err != nil {
		return &InvalidCommandError{Cmd: c.Cmd, Reason: "cmd is not valid shell syntax", Err: err}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidCommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid command %q: %s: %v", e.Cmd, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid command %q: %s", e.Cmd, e.Reason)
}

// Unwrap returns ErrInvalidCommand and the underlying cause.
func (e *InvalidCommandError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidCommand, e.Err}
	}
	return []error{ErrInvalidCommand}
}

// Args returns the copy options split into individual arguments.
func (f CopyFile) Args() []string {
	var args []string
	for _, opt := range f.Opts {
		args = append(args, strings.Fields(opt)...)
	}
	return args
}

// Validate checks that both ends of the copy are set.
func (f CopyFile) Validate() error {
	if strings.TrimSpace(f.Src) == "" {
		return &InvalidCopyFileError{Src: f.Src, Dest: f.Dest, Reason: "src must not be empty"}
	}
	if strings.TrimSpace(f.Dest) == "" {
		return &InvalidCopyFileError{Src: f.Src, Dest: f.Dest, Reason: "dest must not be empty"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidCopyFileError) Error() string {
	return fmt.Sprintf("invalid copy file %q -> %q: %s", e.Src, e.Dest, e.Reason)
}

// Unwrap returns ErrInvalidCopyFile for errors.Is() compatibility.
func (e *InvalidCopyFileError) Unwrap() error { return ErrInvalidCopyFile }

// ModuleCommandsFromMap converts an action -> modules mapping into an ordered
// list. Actions are sorted so the resulting order does not depend on map
// iteration.
func ModuleCommandsFromMap(m map[string][]string) []ModuleCommand {
	if len(m) == 0 {
		return nil
	}
	actions := make([]string, 0, len(m))
	for action := range m {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	cmds := make([]ModuleCommand, 0, len(actions))
	for _, action := range actions {
		cmds = append(cmds, ModuleCommand{Action: action, Modules: slices.Clone(m[action])})
	}
	return cmds
}

// Validate checks that the action is a single word and at least one module is named.
func (m ModuleCommand) Validate() error {
	if m.Action == "" || strings.ContainsFunc(m.Action, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }) {
		return &InvalidModuleCommandError{Action: m.Action, Reason: "action must be a single non-empty word"}
	}
	if len(m.Modules) == 0 {
		return &InvalidModuleCommandError{Action: m.Action, Reason: "at least one module is required"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidModuleCommandError) Error() string {
	return fmt.Sprintf("invalid module command %q: %s", e.Action, e.Reason)
}

// Unwrap returns ErrInvalidModuleCommand for errors.Is() compatibility.
func (e *InvalidModuleCommandError) Unwrap() error { return ErrInvalidModuleCommand }
