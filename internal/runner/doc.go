// SPDX-License-Identifier: MPL-2.0

// Package runner executes external tools and streams their output line by line.
//
// Run is the single primitive every other component uses to talk to buildah,
// the package manager, oscap and friends. A non-zero exit code is reported as
// a value, not as an error: callers decide which codes are fatal.
package runner
