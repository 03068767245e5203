// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package runner

import "os/exec"

// killProcessGroup leaves cmd unchanged; cancellation kills only the tool.
func killProcessGroup(*exec.Cmd) {}
