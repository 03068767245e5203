// SPDX-License-Identifier: MPL-2.0

// Package installer applies the steps of a layer definition to a working
// container: repositories, package groups, packages, modules, package
// removals, copied files and shell commands.
//
// Every step is a no-op, with a logged notice, when its input is empty, so
// callers invoke every step unconditionally. Within a step the first failure
// aborts the remaining items. Package manager exit code 104 is fatal and 107
// (a failed RPM post-install script) is only a warning.
package installer
