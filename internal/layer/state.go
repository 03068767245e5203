// SPDX-License-Identifier: MPL-2.0

package layer

// State is the position of a build in its linear lifecycle.
type State int

const (
	StateCreated State = iota
	StateReposInstalled
	StatePackagesInstalled
	StateFilesCopied
	StateCommandsRun
	StatePublished
	StateFailed
)

var stateNames = [...]string{
	StateCreated:           "created",
	StateReposInstalled:    "repos-installed",
	StatePackagesInstalled: "packages-installed",
	StateFilesCopied:       "files-copied",
	StateCommandsRun:       "commands-run",
	StatePublished:         "published",
	StateFailed:            "failed",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StatePublished || s == StateFailed
}
